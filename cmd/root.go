// Copyright 2025 Forge Authors
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/garrettyarmo/forge/internal/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Knowledge graph surveys over a fleet of source repositories",
	Long: `Forge ingests a fleet of source repositories written in several languages
and produces a knowledge graph of the services, data stores, message channels,
and cloud resources they contain, together with the edges that connect them.

The graph is consumed by LLM agents and by operational tooling that needs
ecosystem-wide situational awareness.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches $PWD then $HOME for .forge.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "console log level (trace, debug, info, warn, error)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in current directory first, then home directory,
		// so project-specific configs override global ones.
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".forge")
	}

	viper.SetEnvPrefix("FORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

// initLogging initializes the global logging system.
func initLogging() {
	logConfig := logger.DefaultConfig()
	logConfig.Level = logger.ParseLogLevel(viper.GetString("log-level"))
	if viper.GetBool("verbose") && logConfig.Level > logger.InfoLevel {
		logConfig.Level = logger.InfoLevel
	}
	if err := logger.InitGlobal(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}
}

// newLogger builds the logger handed to the core components.
func newLogger() (logger.Logger, error) {
	logConfig := logger.DefaultConfig()
	logConfig.Level = logger.ParseLogLevel(viper.GetString("log-level"))
	if viper.GetBool("verbose") && logConfig.Level > logger.InfoLevel {
		logConfig.Level = logger.InfoLevel
	}
	return logger.New(logConfig)
}
