// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/modhost/internal/datafile"
	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/pkg/errutil"
)

const greeterScript = `
return {
  name = "greeter",
  version = "1.0.0",
  author = "Ada",
  info_url = "https://example.com/greeter",
  enable = function(host)
    assert(host.register_command("hello", function(sender, args)
      return "Hello, " .. (args[1] or sender.name)
    end))
    assert(host.register_command("wave", function(sender, args)
      sender.send("*waves*")
      if sender.has_permission("greeter.wave") then
        sender.send("allowed")
      end
    end))
    assert(host.register_tab_completer("hello", function(sender, args)
      return {"ada", "grace", 42}
    end))
    assert(host.register_permission{
      name = "greeter.use",
      default = "all",
      description = "Use the greeter",
      children = {["greeter.wave"] = true},
    })
  end,
}
`

type testSender struct {
	name     string
	op       bool
	perms    map[string]bool
	messages []string
}

func (s *testSender) Name() string                  { return s.name }
func (s *testSender) Privileged() bool              { return s.op }
func (s *testSender) HasPermission(node string) bool { return s.op || s.perms[node] }
func (s *testSender) Send(msg string)               { s.messages = append(s.messages, msg) }

func writeScript(t *testing.T, dir, name, code string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(code), 0o600))
	return path
}

func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return writeScript(t, dir, name, buf.String())
}

// loadScripts writes scripts into a fresh modules directory and loads them.
func loadScripts(t *testing.T, shared bool, scripts map[string]string) (*extension.Manager, *bytes.Buffer) {
	t.Helper()
	layout := datafile.Layout{Root: t.TempDir()}
	for name, code := range scripts {
		writeScript(t, layout.Modules(), name, code)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := extension.NewManager(layout,
		extension.WithRuntime(New()),
		extension.WithSharedContext(shared),
		extension.WithLogger(logger),
	)
	t.Cleanup(func() { _ = m.Close() })

	_, err := m.LoadAll(context.Background())
	require.NoError(t, err)
	return m, &logs
}

func TestResolve_ScriptMetadata(t *testing.T) {
	path := writeScript(t, t.TempDir(), "greeter.lua", greeterScript)

	c, err := New().Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "greeter", c.Descriptor.Name)
	assert.Equal(t, "1.0.0", c.Descriptor.Version)
	assert.Equal(t, "Ada", c.Descriptor.Author)
	assert.Equal(t, "https://example.com/greeter", c.Descriptor.InfoURL)
	assert.Equal(t, "greeter.lua", c.Descriptor.EntryPoint)
}

func TestResolve_ScriptFailures(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"syntax error", "return {", extension.CodeLoadFailed},
		{"runtime error", "error('nope')", extension.CodeLoadFailed},
		{"no table", "return 42", extension.CodeInvalidManifest},
		{"nothing returned", "local x = 1", extension.CodeInvalidManifest},
		{"os is closed", "os.exit(1)", extension.CodeLoadFailed},
		{"io is closed", "io.open('/etc/passwd')", extension.CodeLoadFailed},
		{"dofile is closed", "dofile('/etc/passwd')", extension.CodeLoadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, t.TempDir(), "bad.lua", tt.code)
			_, err := New().Resolve(context.Background(), path)
			errutil.AssertErrorCode(t, err, tt.want)
		})
	}
}

func TestResolve_Package(t *testing.T) {
	path := writeZip(t, t.TempDir(), "greeter.zip", map[string]string{
		"module.yml":   "main: src/init.lua\nname: packaged\nversion: 2.0\nauthor: Grace\n",
		"src/init.lua": "return { enable = function(host) end }",
	})

	c, err := New().Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "packaged", c.Descriptor.Name)
	assert.Equal(t, "2.0", c.Descriptor.Version)
	assert.Equal(t, "Grace", c.Descriptor.Author)
	assert.Equal(t, "src/init.lua", c.Descriptor.EntryPoint)
}

func TestResolve_PackageFailures(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
		want    string
	}{
		{"no manifest", map[string]string{"init.lua": "return {}"}, extension.CodeInvalidManifest},
		{"bad manifest", map[string]string{"module.yml": "name: [x\n"}, extension.CodeInvalidManifest},
		{"missing main", map[string]string{"module.yml": "main: init.lua\nname: p\nversion: 1\nauthor: a\n"}, extension.CodeInvalidManifest},
		{"syntax error", map[string]string{
			"module.yml": "main: init.lua\nname: p\nversion: 1\nauthor: a\n",
			"init.lua":   "return {",
		}, extension.CodeLoadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeZip(t, t.TempDir(), "p.zip", tt.entries)
			_, err := New().Resolve(context.Background(), path)
			errutil.AssertErrorCode(t, err, tt.want)
		})
	}

	t.Run("not a zip", func(t *testing.T) {
		path := writeScript(t, t.TempDir(), "p.zip", "plain text")
		_, err := New().Resolve(context.Background(), path)
		errutil.AssertErrorCode(t, err, extension.CodeLoadFailed)
	})
}

func TestScript_CommandsCompletersAndPermissions(t *testing.T) {
	m, _ := loadScripts(t, true, map[string]string{"greeter.lua": greeterScript})

	rec := m.Records()
	require.Len(t, rec, 1)
	require.Equal(t, extension.StatePostEnabled, rec[0].State, "%v", rec[0].Err)
	assert.Equal(t, "lua", rec[0].Descriptor.Runtime)

	sender := &testSender{name: "Ada"}
	require.NoError(t, m.Router().Execute(context.Background(), sender, "hello"))
	require.NoError(t, m.Router().Execute(context.Background(), sender, `greeter:hello "Grace Hopper"`))
	assert.Equal(t, []string{"Hello, Ada", "Hello, Grace Hopper"}, sender.messages)

	waver := &testSender{name: "w", perms: map[string]bool{"greeter.wave": true}}
	require.NoError(t, m.Router().Execute(context.Background(), waver, "wave"))
	assert.Equal(t, []string{"*waves*", "allowed"}, waver.messages)

	assert.Equal(t, []string{"ada", "grace"}, m.Router().Complete(context.Background(), sender, "hello a"))

	node, ok := m.Permissions().Get("greeter.use")
	require.True(t, ok)
	assert.Equal(t, "Use the greeter", node.Description)
	assert.Equal(t, map[string]bool{"greeter.wave": true}, node.Children)
}

func TestScript_CommandErrorPropagates(t *testing.T) {
	m, _ := loadScripts(t, true, map[string]string{"e.lua": `
return {
  name = "err", version = "1", author = "a",
  enable = function(host)
    host.register_command("fail", function() error("broken command") end)
  end,
}`})

	err := m.Router().Execute(context.Background(), &testSender{name: "x"}, "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken command")
}

func TestScript_EnableErrorMarksFailed(t *testing.T) {
	m, logs := loadScripts(t, true, map[string]string{
		"a.lua": `return { name = "bad", version = "1", author = "a", enable = function() error("no luck") end }`,
		"b.lua": `return { name = "good", version = "1", author = "a" }`,
	})

	recs := m.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, extension.StateFailed, recs[0].State)
	errutil.AssertErrorCode(t, recs[0].Err, extension.CodeEnableFailed)
	assert.Equal(t, extension.StatePostEnabled, recs[1].State)
	assert.Contains(t, logs.String(), "no luck")
}

func TestScript_SharedContextSharesGlobals(t *testing.T) {
	scripts := map[string]string{
		"a.lua": `GREETING = "hi"
return { name = "setter", version = "1", author = "a" }`,
		"b.lua": `return {
  name = "getter", version = "1", author = "a",
  enable = function(host)
    host.register_command("greeting", function() return tostring(GREETING) end)
  end,
}`,
	}

	tests := []struct {
		shared bool
		want   string
	}{
		{true, "hi"},
		{false, "nil"},
	}
	for _, tt := range tests {
		m, _ := loadScripts(t, tt.shared, scripts)
		sender := &testSender{name: "x"}
		require.NoError(t, m.Router().Execute(context.Background(), sender, "greeting"))
		assert.Equal(t, []string{tt.want}, sender.messages, "shared=%v", tt.shared)
	}
}

func TestScript_EventsAndStorage(t *testing.T) {
	m, _ := loadScripts(t, false, map[string]string{
		"a.lua": `return {
  name = "listener", version = "1", author = "a",
  enable = function(host)
    host.subscribe("joined", function(ev)
      local store = assert(host.storage())
      store.set("last", ev.payload.who)
      store.set("from", ev.source)
      assert(store.save())
    end)
  end,
}`,
		"b.lua": `return {
  name = "publisher", version = "1", author = "a",
  post_enable = function(host)
    local delivered, failed = host.publish("joined", {who = "ada"})
    host.publish("left", {who = "ada"})
    local cfg = assert(host.config())
    cfg.set("delivered", delivered)
    cfg.set("failed", failed)
    cfg.set("id_length", #host.new_id())
    cfg.set("knows_listener", host.is_registered("LISTENER"))
    cfg.set("listener_runtime", host.lookup("listener").runtime)
    cfg.set("extension_count", #host.extensions())
    assert(cfg.save())
  end,
}`,
	})

	for _, rec := range m.Records() {
		require.Equal(t, extension.StatePostEnabled, rec.State, "%s: %v", rec.Descriptor.Name, rec.Err)
	}

	storage := datafile.NewNamespace(filepath.Join(m.Layout().Storage(), "listener.yml"))
	require.NoError(t, storage.Read())
	last, _ := storage.Get("last")
	assert.Equal(t, "ada", last)
	from, _ := storage.Get("from")
	assert.Equal(t, "publisher", from)

	cfg := datafile.NewNamespace(filepath.Join(m.Layout().Config(), "publisher.yml"))
	require.NoError(t, cfg.Read())
	want := map[string]any{
		"delivered":        1,
		"failed":           0,
		"id_length":        26,
		"knows_listener":   true,
		"listener_runtime": "lua",
		"extension_count":  2,
	}
	for key, value := range want {
		got, ok := cfg.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, value, got, key)
	}
}

func TestScript_RegistrationErrorsReachLua(t *testing.T) {
	m, _ := loadScripts(t, true, map[string]string{"a.lua": `return {
  name = "registrar", version = "1", author = "a",
  enable = function(host)
    local ok, err = host.register_tab_completer("missing", function() return {} end)
    assert(not ok, "expected failure")
    assert(string.find(err, "illegal registration"), err)
    local ok2, err2 = host.register_permission{name = "registrar.x", default = "sometimes"}
    assert(not ok2, "expected failure")
  end,
}`})

	recs := m.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, extension.StatePostEnabled, recs[0].State, "%v", recs[0].Err)
}

func TestFromLua_SelfReferencingTables(t *testing.T) {
	L, err := newState()
	require.NoError(t, err)
	defer L.Close()

	tests := []struct {
		name string
		code string
	}{
		{"direct", "local t = {name = 'x'}; t.self = t; return t"},
		{"class pattern", "local M = {}; M.__index = M; return M"},
		{"through a child", "local t = {child = {}}; t.child.parent = t; return t"},
		{"inside a sequence", "local t = {}; t[1] = t; return t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := runChunk(L, tt.code, tt.name)
			require.NoError(t, err)

			_, err = fromLua(ret)
			assert.ErrorContains(t, err, "reference to itself")
			_, err = toMap(ret)
			assert.ErrorContains(t, err, "reference to itself")
		})
	}
}

func TestFromLua_SharedTablesAreNotCycles(t *testing.T) {
	L, err := newState()
	require.NoError(t, err)
	defer L.Close()

	ret, err := runChunk(L, "local shared = {1, 2}; return {a = shared, b = shared, list = {shared}}", "shared")
	require.NoError(t, err)

	got, err := toMap(ret)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a":    []any{int64(1), int64(2)},
		"b":    []any{int64(1), int64(2)},
		"list": []any{[]any{int64(1), int64(2)}},
	}, got)
}

func TestScript_CyclicValuesFailOnlyTheirExtension(t *testing.T) {
	m, logs := loadScripts(t, true, map[string]string{
		"a.lua": `return {
  name = "publisher", version = "1", author = "a",
  enable = function(host)
    local t = {name = "loop"}
    t.self = t
    host.publish("looped", t)
  end,
}`,
		"b.lua": `return {
  name = "saver", version = "1", author = "a",
  enable = function(host)
    local store = assert(host.storage())
    local M = {}
    M.__index = M
    store.set("class", M)
  end,
}`,
		"c.lua": `return { name = "bystander", version = "1", author = "a" }`,
	})

	recs := m.Records()
	require.Len(t, recs, 3)
	for _, rec := range recs[:2] {
		assert.Equal(t, extension.StateFailed, rec.State, rec.Descriptor.Name)
		errutil.AssertErrorCode(t, rec.Err, extension.CodeEnableFailed)
		assert.Contains(t, rec.Err.Error(), "reference to itself")
	}
	assert.Equal(t, extension.StatePostEnabled, recs[2].State, "%v", recs[2].Err)
	assert.Contains(t, logs.String(), "publish looped")
}

func TestRuntime_Identity(t *testing.T) {
	rt := New()
	assert.Equal(t, "lua", rt.Name())
	assert.Equal(t, []string{".lua", ".zip"}, rt.Suffixes())
}
