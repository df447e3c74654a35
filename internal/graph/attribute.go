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

package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// AttrKind discriminates the variants of an attribute value.
type AttrKind int

const (
	AttrString AttrKind = iota
	AttrNumber
	AttrBool
	AttrList
	AttrMap
)

// AttrValue is a tagged union over the value shapes a node attribute can
// take. The JSON form is the natural one: strings marshal as strings,
// numbers as numbers, and so on.
type AttrValue struct {
	Kind AttrKind
	Str  string
	Num  float64
	Bool bool
	List []AttrValue
	Map  map[string]AttrValue
}

func StringValue(s string) AttrValue { return AttrValue{Kind: AttrString, Str: s} }

func NumberValue(n float64) AttrValue { return AttrValue{Kind: AttrNumber, Num: n} }

func BoolValue(b bool) AttrValue { return AttrValue{Kind: AttrBool, Bool: b} }

func ListValue(l []AttrValue) AttrValue { return AttrValue{Kind: AttrList, List: l} }

func MapValue(m map[string]AttrValue) AttrValue { return AttrValue{Kind: AttrMap, Map: m} }

// AsString returns the string payload, or "" for non-string values.
func (v AttrValue) AsString() string {
	if v.Kind == AttrString {
		return v.Str
	}
	return ""
}

// Equal reports deep equality of two attribute values.
func (v AttrValue) Equal(other AttrValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case AttrString:
		return v.Str == other.Str
	case AttrNumber:
		return v.Num == other.Num
	case AttrBool:
		return v.Bool == other.Bool
	case AttrList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case AttrMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, val := range v.Map {
			o, ok := other.Map[k]
			if !ok || !val.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON emits the natural JSON representation of the variant.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AttrString:
		return json.Marshal(v.Str)
	case AttrNumber:
		return json.Marshal(v.Num)
	case AttrBool:
		return json.Marshal(v.Bool)
	case AttrList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case AttrMap:
		// Sort keys for a stable envelope.
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.Map[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	}
	return nil, fmt.Errorf("unknown attribute kind %d", v.Kind)
}

// UnmarshalJSON reconstructs the variant from its natural JSON form.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := attrFromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func attrFromInterface(raw interface{}) (AttrValue, error) {
	switch t := raw.(type) {
	case string:
		return StringValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return AttrValue{}, err
		}
		return NumberValue(f), nil
	case bool:
		return BoolValue(t), nil
	case []interface{}:
		list := make([]AttrValue, 0, len(t))
		for _, item := range t {
			av, err := attrFromInterface(item)
			if err != nil {
				return AttrValue{}, err
			}
			list = append(list, av)
		}
		return ListValue(list), nil
	case map[string]interface{}:
		m := make(map[string]AttrValue, len(t))
		for k, item := range t {
			av, err := attrFromInterface(item)
			if err != nil {
				return AttrValue{}, err
			}
			m[k] = av
		}
		return MapValue(m), nil
	case nil:
		return StringValue(""), nil
	}
	return AttrValue{}, fmt.Errorf("unsupported attribute value %T", raw)
}
