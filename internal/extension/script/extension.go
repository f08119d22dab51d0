// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/modhost/pkg/modapi"
)

// Module table hooks.
const (
	enableHook     = "enable"
	postEnableHook = "post_enable"
)

// scriptExtension adapts a Lua module table to modapi.Extension. Hooks
// receive the host API table as their only argument.
type scriptExtension struct {
	L      *lua.LState
	module *lua.LTable
	host   modapi.Host
	api    *lua.LTable
	ctx    context.Context // context of the Go call currently running Lua
}

func (e *scriptExtension) Init(host modapi.Host) {
	e.host = host
	e.api = e.buildAPI()
}

func (e *scriptExtension) Enable(ctx context.Context, _ modapi.Host) error {
	return e.callHook(ctx, enableHook)
}

func (e *scriptExtension) PostEnable(ctx context.Context, _ modapi.Host) error {
	return e.callHook(ctx, postEnableHook)
}

func (e *scriptExtension) callHook(ctx context.Context, hook string) error {
	fn, ok := e.module.RawGetString(hook).(*lua.LFunction)
	if !ok {
		return nil
	}
	_, err := e.call(ctx, fn, 0, e.api)
	return err
}

// call invokes fn in protected mode and returns its nret results.
func (e *scriptExtension) call(ctx context.Context, fn lua.LValue, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	prev := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prev }()

	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return nil, oops.In("lua").With("extension", e.name()).Wrap(err)
	}
	out := make([]lua.LValue, nret)
	for i := nret - 1; i >= 0; i-- {
		out[i] = e.L.Get(-1)
		e.L.Pop(1)
	}
	return out, nil
}

// callContext returns the context of the running call, for host functions.
func (e *scriptExtension) callContext() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *scriptExtension) name() string {
	if e.host == nil {
		return ""
	}
	return e.host.Self().Name
}

// scriptCommand runs a Lua function as a command. A string returned by the
// function is sent to the sender.
type scriptCommand struct {
	ext *scriptExtension
	fn  *lua.LFunction
}

func (c *scriptCommand) Execute(ctx context.Context, sender modapi.Sender, args []string) error {
	L := c.ext.L
	ret, err := c.ext.call(ctx, c.fn, 1, senderTable(L, sender), toLua(L, args))
	if err != nil {
		return err
	}
	if msg, ok := ret[0].(lua.LString); ok && msg != "" {
		sender.Send(string(msg))
	}
	return nil
}

// scriptCompleter runs a Lua function returning a list of completions.
type scriptCompleter struct {
	ext *scriptExtension
	fn  *lua.LFunction
}

func (c *scriptCompleter) Complete(ctx context.Context, sender modapi.Sender, args []string) []string {
	L := c.ext.L
	ret, err := c.ext.call(ctx, c.fn, 1, senderTable(L, sender), toLua(L, args))
	if err != nil {
		c.ext.host.Logger().WarnContext(ctx, "tab completer failed", "error", err)
		return nil
	}
	return toStrings(ret[0])
}
