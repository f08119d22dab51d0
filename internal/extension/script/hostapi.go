// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"context"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/modhost/internal/logging"
	"github.com/holomush/modhost/pkg/modapi"
)

// pushError pushes nil and an error message, the Lua convention for a
// failed call.
func pushError(L *lua.LState, msg string) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(msg))
	return 2
}

// pushSuccess pushes value and a nil error.
func pushSuccess(L *lua.LState, value lua.LValue) int {
	L.Push(value)
	L.Push(lua.LNil)
	return 2
}

// buildAPI creates the host table handed to the module's hooks.
func (e *scriptExtension) buildAPI() *lua.LTable {
	L := e.L
	self := e.host.Self()

	api := L.NewTable()
	api.RawSetString("name", lua.LString(self.Name))
	api.RawSetString("version", lua.LString(self.Version))

	set := func(name string, fn lua.LGFunction) {
		L.SetField(api, name, L.NewFunction(fn))
	}
	set("log", e.logFn)
	set("new_id", newIDFn)
	set("register_command", e.registerCommandFn)
	set("register_tab_completer", e.registerCompleterFn)
	set("register_permission", e.registerPermissionFn)
	set("publish", e.publishFn)
	set("subscribe", e.subscribeFn)
	set("lookup", e.lookupFn)
	set("is_registered", e.isRegisteredFn)
	set("extensions", e.extensionsFn)
	set("config", e.storeFn(e.host.Config))
	set("storage", e.storeFn(e.host.Storage))
	return api
}

// log(level, message)
func (e *scriptExtension) logFn(L *lua.LState) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)
	e.host.Logger().Log(e.callContext(), logging.ParseLevel(level), msg)
	return 0
}

// new_id() -> string
func newIDFn(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}

// register_command(name, fn(sender, args)) -> true | nil, err
func (e *scriptExtension) registerCommandFn(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	if err := e.host.RegisterCommand(name, &scriptCommand{ext: e, fn: fn}); err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, lua.LTrue)
}

// register_tab_completer(name, fn(sender, args) -> {string}) -> true | nil, err
func (e *scriptExtension) registerCompleterFn(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	if err := e.host.RegisterTabCompleter(name, &scriptCompleter{ext: e, fn: fn}); err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, lua.LTrue)
}

// register_permission{name=, default=, description=, children={[node]=bool}}
// -> true | nil, err
func (e *scriptExtension) registerPermissionFn(L *lua.LState) int {
	t := L.CheckTable(1)
	node := modapi.PermissionNode{
		Name:        stringField(t, "name"),
		Default:     modapi.DefaultPolicy(stringField(t, "default")),
		Description: stringField(t, "description"),
	}
	if children, ok := t.RawGetString("children").(*lua.LTable); ok {
		node.Children = make(map[string]bool)
		children.ForEach(func(k, v lua.LValue) {
			node.Children[k.String()] = lua.LVAsBool(v)
		})
	}
	if err := e.host.RegisterPermission(node); err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, lua.LTrue)
}

// publish(name, payload) -> delivered, failed
func (e *scriptExtension) publishFn(L *lua.LState) int {
	name := L.CheckString(1)
	payload, err := toMap(L.Get(2))
	if err != nil {
		L.RaiseError("publish %s: %s", name, err.Error())
		return 0
	}
	res := e.host.Publish(e.callContext(), modapi.ScriptEvent{
		Name:    name,
		Source:  e.name(),
		Payload: payload,
	})
	L.Push(lua.LNumber(res.Delivered))
	L.Push(lua.LNumber(res.Failed))
	return 2
}

// subscribe(name, fn(event))
func (e *scriptExtension) subscribeFn(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	e.host.RegisterListener(modapi.Listen(
		modapi.On(func(ctx context.Context, ev modapi.ScriptEvent) error {
			if ev.Name != name {
				return nil
			}
			_, err := e.call(ctx, fn, 0, eventTable(e.L, ev))
			return err
		}),
	))
	return 0
}

// lookup(name) -> descriptor | nil
func (e *scriptExtension) lookupFn(L *lua.LState) int {
	ext, ok := e.host.Lookup(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	desc, ok := e.host.Describe(ext)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(descriptorTable(L, desc))
	return 1
}

// is_registered(name) -> bool
func (e *scriptExtension) isRegisteredFn(L *lua.LState) int {
	L.Push(lua.LBool(e.host.IsRegistered(L.CheckString(1))))
	return 1
}

// extensions() -> {descriptor}
func (e *scriptExtension) extensionsFn(L *lua.LState) int {
	descs := e.host.Extensions()
	t := L.CreateTable(len(descs), 0)
	for _, d := range descs {
		t.Append(descriptorTable(L, d))
	}
	L.Push(t)
	return 1
}

// storeFn builds config() and storage(): each returns a store table with
// get, set, keys, read, save and path, or nil and an error.
func (e *scriptExtension) storeFn(open func() (modapi.Store, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		store, err := open()
		if err != nil {
			return pushError(L, err.Error())
		}
		return pushSuccess(L, storeTable(L, store))
	}
}

func storeTable(L *lua.LState, store modapi.Store) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("path", lua.LString(store.Path()))
	L.SetField(t, "get", L.NewFunction(func(L *lua.LState) int {
		v, ok := store.Get(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(toLua(L, v))
		return 1
	}))
	L.SetField(t, "set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		value, err := fromLua(L.Get(2))
		if err != nil {
			L.RaiseError("set %s: %s", key, err.Error())
			return 0
		}
		store.Set(key, value)
		return 0
	}))
	L.SetField(t, "keys", L.NewFunction(func(L *lua.LState) int {
		L.Push(toLua(L, store.Keys()))
		return 1
	}))
	L.SetField(t, "read", L.NewFunction(func(L *lua.LState) int {
		if err := store.Read(); err != nil {
			return pushError(L, err.Error())
		}
		return pushSuccess(L, lua.LTrue)
	}))
	L.SetField(t, "save", L.NewFunction(func(L *lua.LState) int {
		if err := store.Save(); err != nil {
			return pushError(L, err.Error())
		}
		return pushSuccess(L, lua.LTrue)
	}))
	return t
}

func senderTable(L *lua.LState, sender modapi.Sender) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(sender.Name()))
	t.RawSetString("privileged", lua.LBool(sender.Privileged()))
	L.SetField(t, "send", L.NewFunction(func(L *lua.LState) int {
		sender.Send(L.CheckString(1))
		return 0
	}))
	L.SetField(t, "has_permission", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(sender.HasPermission(L.CheckString(1))))
		return 1
	}))
	return t
}

func eventTable(L *lua.LState, ev modapi.ScriptEvent) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(ev.Name))
	t.RawSetString("source", lua.LString(ev.Source))
	if ev.Payload != nil {
		t.RawSetString("payload", toLua(L, ev.Payload))
	} else {
		t.RawSetString("payload", L.NewTable())
	}
	return t
}

func descriptorTable(L *lua.LState, d modapi.Descriptor) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(d.Name))
	t.RawSetString("version", lua.LString(d.Version))
	t.RawSetString("author", lua.LString(d.Author))
	t.RawSetString("info_url", lua.LString(d.InfoURL))
	t.RawSetString("runtime", lua.LString(d.Runtime))
	t.RawSetString("path", lua.LString(d.PackagePath))
	return t
}
