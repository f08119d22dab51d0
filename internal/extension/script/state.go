// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package script loads extensions written in Lua.
//
// A script extension is a Lua chunk that returns its module table:
//
//	return {
//	  name = "greeter",
//	  version = "1.0.0",
//	  author = "Ada",
//	  info_url = "https://example.com/greeter",
//	  enable = function(host)
//	    host.register_command("hello", function(sender, args)
//	      sender.send("Hello, " .. sender.name)
//	    end)
//	  end,
//	}
//
// Scripts are discovered as single .lua files or as .zip packages holding a
// module.yml manifest and the entry script it names.
//
//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

type library struct {
	name string
	fn   lua.LGFunction
}

// safeLibraries are opened in every state. os, io, debug and package stay
// closed.
var safeLibraries = []library{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// fileFunctions are base library functions that reach the filesystem or
// compile arbitrary code.
var fileFunctions = []string{"dofile", "loadfile", "loadstring", "load"}

// newState creates a Lua state with only the safe libraries loaded.
func newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range safeLibraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open library %s: %w", lib.name, err)
		}
	}

	for _, fn := range fileFunctions {
		L.SetGlobal(fn, lua.LNil)
	}
	return L, nil
}

// runChunk compiles code in L and returns the value the chunk returns.
func runChunk(L *lua.LState, code, chunkName string) (lua.LValue, error) {
	fn, err := L.Load(strings.NewReader(code), chunkName)
	if err != nil {
		return lua.LNil, err
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return lua.LNil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}
