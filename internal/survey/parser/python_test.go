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

package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge/internal/logger"
)

func newPyParser(t *testing.T) *PythonParser {
	t.Helper()
	log, err := logger.NewTestLogger()
	require.NoError(t, err)
	return NewPythonParser(log)
}

func TestPythonImports(t *testing.T) {
	p := newPyParser(t)
	content := []byte(`
import boto3
import requests
from datetime import datetime
from os.path import join
`)
	discoveries, err := p.ParseFile("test.py", content)
	require.NoError(t, err)

	modules := make(map[string]bool)
	for _, imp := range imports(discoveries) {
		modules[imp.Module] = true
	}
	assert.True(t, modules["boto3"])
	assert.True(t, modules["requests"])
	assert.True(t, modules["datetime"])
	assert.True(t, modules["os.path"])
}

func TestPythonRelativeImport(t *testing.T) {
	p := newPyParser(t)
	content := []byte("from .models import User\n")
	discoveries, err := p.ParseFile("test.py", content)
	require.NoError(t, err)

	imps := imports(discoveries)
	require.Len(t, imps, 1)
	assert.True(t, imps[0].IsRelative)
}

func TestBoto3ClientDiscoveries(t *testing.T) {
	p := newPyParser(t)
	content := []byte(`
import boto3

dynamodb = boto3.client('dynamodb')
s3 = boto3.resource('s3')
sqs = boto3.client('sqs')
sns = boto3.client('sns')
lam = boto3.client('lambda')
events = boto3.client('events')
kinesis = boto3.client('kinesis')
`)
	discoveries, err := p.ParseFile("test.py", content)
	require.NoError(t, err)

	dbs := dbAccesses(discoveries)
	require.Len(t, dbs, 1)
	assert.Equal(t, "dynamodb", dbs[0].DBType)
	assert.Equal(t, OpUnknown, dbs[0].Operation)
	assert.Equal(t, "boto3.client", dbs[0].DetectionMethod)

	queues := queueOps(discoveries)
	require.Len(t, queues, 3)
	byType := map[string]QueueOperationDiscovery{}
	for _, q := range queues {
		byType[q.QueueType] = q
	}
	assert.Equal(t, QueueOpUnknown, byType["sqs"].Operation)
	// SNS handles are producer-biased.
	assert.Equal(t, QueueOpPublish, byType["sns"].Operation)
	assert.Equal(t, QueueOpUnknown, byType["eventbridge"].Operation)

	resources := cloudResources(discoveries)
	types := map[string]bool{}
	for _, r := range resources {
		types[r.ResourceType] = true
	}
	assert.True(t, types["s3"])
	assert.True(t, types["lambda"])
	// Unmapped services fall through to a generic cloud resource.
	assert.True(t, types["kinesis"])
}

func TestPythonDynamoDBMethods(t *testing.T) {
	p := newPyParser(t)
	content := []byte(`
import boto3

dynamodb = boto3.client('dynamodb')
dynamodb.get_item(TableName='users', Key={'id': {'S': '1'}})
dynamodb.put_item(TableName='users', Item={'id': {'S': '1'}})
dynamodb.update_item(TableName='users', Key={'id': {'S': '1'}})
dynamodb.scan(TableName='audit')
`)
	discoveries, err := p.ParseFile("test.py", content)
	require.NoError(t, err)

	dbs := dbAccesses(discoveries)
	// One from boto3.client('dynamodb') plus one per method call; the
	// double emission at handle-creation time is intentional.
	require.Len(t, dbs, 5)

	ops := map[DatabaseOperation]int{}
	named := map[string]bool{}
	for _, db := range dbs {
		ops[db.Operation]++
		if db.TableName != "" {
			named[db.TableName] = true
		}
	}
	assert.Equal(t, 2, ops[OpRead])
	assert.Equal(t, 1, ops[OpWrite])
	assert.Equal(t, 1, ops[OpReadWrite])
	assert.Equal(t, 1, ops[OpUnknown])
	assert.True(t, named["users"])
	assert.True(t, named["audit"])
}

func TestPythonHTTPClients(t *testing.T) {
	p := newPyParser(t)
	content := []byte(`
import requests
import httpx

response = requests.get('https://api.example.com/users')
requests.post('https://api.example.com/orders', json={'item': 'x'})
httpx.get('https://internal.example.com/data')
`)
	discoveries, err := p.ParseFile("test.py", content)
	require.NoError(t, err)

	calls := apiCalls(discoveries)
	require.Len(t, calls, 3)

	byMethod := map[string]int{}
	byDetection := map[string]int{}
	for _, call := range calls {
		byMethod[call.Method]++
		byDetection[call.DetectionMethod]++
	}
	assert.Equal(t, 2, byMethod["GET"])
	assert.Equal(t, 1, byMethod["POST"])
	assert.Equal(t, 2, byDetection["requests"])
	assert.Equal(t, 1, byDetection["httpx"])
	assert.Equal(t, "https://api.example.com/users", calls[0].Target)
}

func TestPythonHTTPUnknownTarget(t *testing.T) {
	p := newPyParser(t)
	content := []byte(`
import requests
requests.get(url)
`)
	discoveries, err := p.ParseFile("test.py", content)
	require.NoError(t, err)

	calls := apiCalls(discoveries)
	require.Len(t, calls, 1)
	assert.Equal(t, "unknown", calls[0].Target)
}

func TestParsePyprojectTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(`
[project]
name = "my-service"
version = "1.0.0"
dependencies = ["fastapi>=0.100.0", "boto3>=1.28.0"]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte(""), 0644))

	p := newPyParser(t)
	svc, ok := p.ParseProjectConfig(dir)
	require.True(t, ok)
	assert.Equal(t, "my-service", svc.Name)
	assert.Equal(t, "python", svc.Language)
	assert.Equal(t, "fastapi", svc.Framework)
	assert.Equal(t, "app.py", svc.EntryPoint)
}

func TestParseSetupPy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"), []byte(`
from setuptools import setup

setup(
    name="legacy-worker",
    version="0.1.0",
)
`), 0644))

	p := newPyParser(t)
	svc, ok := p.ParseProjectConfig(dir)
	require.True(t, ok)
	assert.Equal(t, "legacy-worker", svc.Name)
}

func TestRequirementsFallback(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "analytics-api")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask==3.0\nboto3\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "server.py"), []byte(""), 0644))

	p := newPyParser(t)
	svc, ok := p.ParseProjectConfig(dir)
	require.True(t, ok)
	// Directory name stands in for the project name.
	assert.Equal(t, "analytics-api", svc.Name)
	assert.Equal(t, "flask", svc.Framework)
	assert.Equal(t, "src/server.py", svc.EntryPoint)
}

func TestPythonFrameworkPriority(t *testing.T) {
	// fastapi outranks flask when both appear.
	assert.Equal(t, "fastapi", detectPyFramework("flask\nfastapi\n"))
	assert.Equal(t, "chalice", detectPyFramework("chalice==1.29\n"))
	assert.Equal(t, "", detectPyFramework("boto3\nrequests\n"))
}

func TestParseProjectConfigMissing(t *testing.T) {
	p := newPyParser(t)
	_, ok := p.ParseProjectConfig(t.TempDir())
	assert.False(t, ok)
}
