// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"fmt"
	"math"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go value decoded from YAML or built by the host into a
// Lua value. Unsupported types become their string form.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []string:
		t := L.CreateTable(len(val), 0)
		for _, s := range val {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.CreateTable(len(val), 0)
		for _, item := range val {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	case map[any]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(fmt.Sprint(k), toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// fromLua converts a Lua value into plain Go data. Tables whose keys are
// exactly 1..n become slices; other tables become string-keyed maps.
// Functions and userdata become nil. A table that contains itself cannot be
// converted and yields an error.
func fromLua(v lua.LValue) (any, error) {
	return convertValue(v, make(map[*lua.LTable]bool))
}

// convertValue converts v; visiting holds the tables on the current path.
func convertValue(v lua.LValue, visiting map[*lua.LTable]bool) (any, error) {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val), nil
	case lua.LString:
		return string(val), nil
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case *lua.LTable:
		return convertTable(val, visiting)
	default:
		return nil, nil
	}
}

func convertTable(t *lua.LTable, visiting map[*lua.LTable]bool) (any, error) {
	if visiting[t] {
		return nil, oops.Errorf("table contains a reference to itself")
	}
	visiting[t] = true
	defer delete(visiting, t)

	n := t.MaxN()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			item, err := convertValue(t.RawGetInt(i), visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return convertFields(t, visiting)
}

// convertFields converts every field of t into a string-keyed map.
func convertFields(t *lua.LTable, visiting map[*lua.LTable]bool) (map[string]any, error) {
	out := make(map[string]any)
	var err error
	t.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var item any
		if item, err = convertValue(v, visiting); err == nil {
			out[k.String()] = item
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// toMap converts a Lua table into a string-keyed map. Non-tables yield nil.
func toMap(v lua.LValue) (map[string]any, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, nil
	}
	return convertFields(t, map[*lua.LTable]bool{t: true})
}

// toStrings converts a Lua sequence into strings, skipping non-strings.
func toStrings(v lua.LValue) []string {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	for i := 1; i <= t.MaxN(); i++ {
		if s, ok := t.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// stringField reads a string field from t, or "" when absent.
func stringField(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return n.String()
	}
	return ""
}
