// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package extension

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/modhost/internal/command"
	"github.com/holomush/modhost/internal/datafile"
	"github.com/holomush/modhost/internal/eventbus"
	"github.com/holomush/modhost/internal/logging"
	"github.com/holomush/modhost/internal/permission"
	"github.com/holomush/modhost/pkg/errutil"
	"github.com/holomush/modhost/pkg/modapi"
)

var tracer = otel.Tracer("modhost/extension")

// Rejection records a package that never reached the registry.
type Rejection struct {
	Path string
	Name string // empty when metadata could not be resolved
	Err  error
}

// Summary counts the outcome of LoadAll.
type Summary struct {
	Discovered  int
	Rejected    int
	Registered  int
	PostEnabled int
	Failed      int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRuntime adds a runtime. Runtimes are consulted in the order added.
func WithRuntime(rt Runtime) Option {
	return func(m *Manager) {
		m.runtimes = append(m.runtimes, rt)
	}
}

// WithSharedContext chooses between one loading context per runtime (true,
// the default) and one per extension.
func WithSharedContext(shared bool) Option {
	return func(m *Manager) {
		m.shared = shared
	}
}

// WithSuffixes narrows discovery to the given suffixes. By default every
// suffix claimed by a runtime is discovered.
func WithSuffixes(suffixes ...string) Option {
	return func(m *Manager) {
		m.suffixes = suffixes
	}
}

// WithLogger sets the logger used for lifecycle reporting.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithBus sets the event bus shared with extensions.
func WithBus(b *eventbus.Bus) Option {
	return func(m *Manager) {
		m.bus = b
	}
}

// WithRouter sets the host command routing table.
func WithRouter(r *command.Router) Option {
	return func(m *Manager) {
		m.router = r
	}
}

// WithPermissions sets the host permission registry.
func WithPermissions(p *permission.Registry) Option {
	return func(m *Manager) {
		m.perms = p
	}
}

// Manager discovers, loads and drives extensions through their lifecycle.
// LoadAll runs once; the query and registration methods are safe for
// concurrent use afterwards.
type Manager struct {
	layout   datafile.Layout
	runtimes []Runtime
	suffixes []string
	shared   bool
	logger   *slog.Logger

	registry *Registry
	bridge   *Bridge
	router   *command.Router
	perms    *permission.Registry
	bus      *eventbus.Bus

	contexts []LoadContext
	rejected []Rejection
	loaded   bool
	ready    atomic.Bool
	mu       sync.Mutex
}

// NewManager creates a manager rooted at layout.
func NewManager(layout datafile.Layout, opts ...Option) *Manager {
	m := &Manager{
		layout:   layout,
		shared:   true,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.router == nil {
		m.router = command.NewRouter()
	}
	if m.perms == nil {
		m.perms = permission.NewRegistry()
	}
	if m.bus == nil {
		m.bus = eventbus.New(eventbus.WithLogger(m.logger))
	}
	if len(m.suffixes) == 0 {
		for _, rt := range m.runtimes {
			m.suffixes = append(m.suffixes, rt.Suffixes()...)
		}
	}
	m.bridge = NewBridge(m.router, m.perms)
	return m
}

// pending is a validated candidate waiting for its loading context.
type pending struct {
	runtime   Runtime
	candidate *Candidate
	context   LoadContext
}

// LoadAll discovers every package under the modules directory and drives
// each one through Init, Enable and, once all are processed, PostEnable.
// Only discovery failures are returned; per-extension failures are logged
// and recorded.
func (m *Manager) LoadAll(ctx context.Context) (summary *Summary, err error) {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return nil, oops.Code(CodeAlreadyLoaded).Errorf("extensions are already loaded")
	}
	m.loaded = true
	m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "extension.load_all")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := m.layout.Ensure(); err != nil {
		return nil, oops.Code(CodeDiscoveryFailed).Wrap(err)
	}
	paths, err := Discover(m.layout.Modules(), m.suffixes)
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "discovered extensions", "count", len(paths), "dir", m.layout.Modules())
	span.SetAttributes(attribute.Int("extension.discovered", len(paths)))

	queue := m.resolveAll(ctx, paths)
	queue = m.buildContexts(ctx, queue)
	for _, p := range queue {
		m.start(ctx, p)
	}
	m.postEnableAll(ctx)

	summary = m.summarize(len(paths))
	m.logger.InfoContext(ctx, "extensions loaded",
		"discovered", summary.Discovered,
		"rejected", summary.Rejected,
		"registered", summary.Registered,
		"failed", summary.Failed)
	m.ready.Store(true)
	return summary, nil
}

// Resolve discovers and resolves every package without loading it. The
// descriptors of valid packages are returned in discovery order.
func (m *Manager) Resolve(ctx context.Context) ([]modapi.Descriptor, []Rejection, error) {
	paths, err := Discover(m.layout.Modules(), m.suffixes)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	before := len(m.rejected)
	m.mu.Unlock()

	queue := m.resolveAll(ctx, paths)
	descs := make([]modapi.Descriptor, len(queue))
	for i, p := range queue {
		descs[i] = p.candidate.Descriptor
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rejected := make([]Rejection, len(m.rejected)-before)
	copy(rejected, m.rejected[before:])
	return descs, rejected, nil
}

func (m *Manager) runtimeFor(path string) Runtime {
	lower := strings.ToLower(path)
	for _, rt := range m.runtimes {
		for _, suffix := range rt.Suffixes() {
			if strings.HasSuffix(lower, strings.ToLower(suffix)) {
				return rt
			}
		}
	}
	return nil
}

// resolveAll resolves and validates each discovered path, dropping the ones
// that fail with a warning.
func (m *Manager) resolveAll(ctx context.Context, paths []string) []*pending {
	var queue []*pending
	seen := make(map[string]string, len(paths))

	for _, path := range paths {
		rt := m.runtimeFor(path)
		if rt == nil {
			m.reject(ctx, PhaseResolve, path, "", oops.Code(CodeLoadFailed).
				With("path", path).
				Errorf("no runtime loads %s packages", filepath.Ext(path)))
			continue
		}

		var c *Candidate
		err := errutil.Guard(func() error {
			var err error
			c, err = rt.Resolve(ctx, path)
			return err
		})
		if err == nil && c == nil {
			err = oops.Code(CodeLoadFailed).Errorf("runtime %s resolved no candidate", rt.Name())
		}
		if err != nil {
			m.reject(ctx, PhaseResolve, path, "", oops.With("path", path).With("runtime", rt.Name()).Wrap(err))
			continue
		}

		c.Descriptor.PackagePath = path
		c.Descriptor.Runtime = rt.Name()
		desc := c.Descriptor

		if err := ValidateMetadata(desc.Metadata()); err != nil {
			m.reject(ctx, PhaseResolve, path, desc.Name, oops.With("path", path).Wrap(err))
			continue
		}

		key := strings.ToLower(desc.Name)
		if existing, ok := seen[key]; ok {
			m.reject(ctx, PhaseResolve, path, desc.Name, ErrDuplicate(desc.Name, existing))
			continue
		}
		seen[key] = path

		if desc.InfoURL == "" {
			m.logger.InfoContext(ctx, "extension has no info URL; consider adding infourl to its metadata",
				"extension", desc.Name)
		}
		if _, err := semver.NewVersion(desc.Version); err != nil {
			m.logger.DebugContext(ctx, "extension version is not semantic",
				"extension", desc.Name, "version", desc.Version)
		}

		recordTransition(StateValidated)
		queue = append(queue, &pending{runtime: rt, candidate: c})
	}
	return queue
}

// buildContexts attaches a loading context to every queued candidate. A
// context that cannot be created fails the candidates it was meant for.
func (m *Manager) buildContexts(ctx context.Context, queue []*pending) []*pending {
	groups := make(map[Runtime][]*pending)
	var order []Runtime
	for _, p := range queue {
		if _, ok := groups[p.runtime]; !ok {
			order = append(order, p.runtime)
		}
		groups[p.runtime] = append(groups[p.runtime], p)
	}

	for _, rt := range order {
		members := groups[rt]
		if m.shared {
			m.attachContext(ctx, rt, members)
			continue
		}
		for _, p := range members {
			m.attachContext(ctx, rt, []*pending{p})
		}
	}

	ready := queue[:0]
	for _, p := range queue {
		if p.context != nil {
			ready = append(ready, p)
		}
	}
	return ready
}

func (m *Manager) attachContext(ctx context.Context, rt Runtime, members []*pending) {
	candidates := make([]*Candidate, len(members))
	for i, p := range members {
		candidates[i] = p.candidate
	}

	var lc LoadContext
	err := errutil.Guard(func() error {
		var err error
		lc, err = rt.NewLoadContext(ctx, candidates)
		return err
	})
	if err == nil && lc == nil {
		err = oops.Errorf("runtime %s returned no loading context", rt.Name())
	}
	if err != nil {
		for _, p := range members {
			desc := p.candidate.Descriptor
			m.reject(ctx, PhaseLoad, desc.PackagePath, desc.Name, lifecycleError(CodeLoadFailed, desc, err))
		}
		return
	}

	m.mu.Lock()
	m.contexts = append(m.contexts, lc)
	m.mu.Unlock()
	for _, p := range members {
		p.context = lc
	}
}

// start instantiates, initializes, registers and enables one extension.
func (m *Manager) start(ctx context.Context, p *pending) {
	desc := p.candidate.Descriptor
	ctx = logging.WithExtension(ctx, desc.Name)

	var inst modapi.Extension
	err := errutil.Guard(func() error {
		var err error
		inst, err = p.context.Instantiate(ctx, p.candidate)
		return err
	})
	if err != nil {
		m.reject(ctx, PhaseLoad, desc.PackagePath, desc.Name, lifecycleError(CodeLoadFailed, desc, err))
		return
	}
	if !hashable(inst) {
		m.reject(ctx, PhaseLoad, desc.PackagePath, desc.Name,
			ErrInvalidType(desc.Name, "entry point produced a nil or non-comparable instance"))
		return
	}
	recordTransition(StateLoaded)

	host := newHost(m, desc, inst)
	inst.Init(host)

	e, err := m.registry.add(inst, desc, host)
	if err != nil {
		m.reject(ctx, PhaseLoad, desc.PackagePath, desc.Name, err)
		return
	}
	recordTransition(StateInitialized)
	RegisteredExtensions.Inc()

	m.enable(ctx, e)
}

func (m *Manager) enable(ctx context.Context, e *entry) {
	desc := e.Descriptor
	ctx, span := tracer.Start(ctx, "extension.enable", trace.WithAttributes(
		attribute.String("extension.name", desc.Name),
		attribute.String("extension.version", desc.Version),
	))
	defer span.End()

	err := errutil.Guard(func() error {
		return e.Instance.Enable(ctx, e.host)
	})
	if err != nil {
		err = lifecycleError(CodeEnableFailed, desc, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.fail(ctx, e, PhaseEnable, "extension threw an error while enabling", err)
		return
	}

	m.registry.setState(e, StateEnabled, nil)
	recordTransition(StateEnabled)
	m.logger.InfoContext(ctx, "extension enabled", "version", desc.Version, "runtime", desc.Runtime)
}

// postEnableAll runs PostEnable on every enabled extension in registration
// order. Extensions without a PostEnable step advance directly.
func (m *Manager) postEnableAll(ctx context.Context) {
	for _, e := range m.registry.entries() {
		if e.State != StateEnabled {
			continue
		}
		desc := e.Descriptor
		ectx := logging.WithExtension(ctx, desc.Name)

		pe, ok := e.Instance.(modapi.PostEnabler)
		if !ok {
			m.registry.setState(e, StatePostEnabled, nil)
			recordTransition(StatePostEnabled)
			continue
		}

		ectx, span := tracer.Start(ectx, "extension.post_enable", trace.WithAttributes(
			attribute.String("extension.name", desc.Name),
		))
		err := errutil.Guard(func() error {
			return pe.PostEnable(ectx, e.host)
		})
		if err != nil {
			err = lifecycleError(CodePostEnableFailed, desc, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.fail(ectx, e, PhasePostEnable, "extension threw an error while post-enabling", err)
		} else {
			m.registry.setState(e, StatePostEnabled, nil)
			recordTransition(StatePostEnabled)
		}
		span.End()
	}
}

func (m *Manager) fail(ctx context.Context, e *entry, phase, msg string, err error) {
	m.registry.setState(e, StateFailed, err)
	recordTransition(StateFailed)
	recordFailure(phase)
	errutil.Log(ctx, m.logger, slog.LevelError, msg, err,
		"extension", e.Descriptor.Name,
		"version", e.Descriptor.Version)
}

func (m *Manager) reject(ctx context.Context, phase, path, name string, err error) {
	recordFailure(phase)
	errutil.Log(ctx, m.logger, slog.LevelWarn, "skipping extension package", err,
		"path", path,
		"extension", name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, Rejection{Path: path, Name: name, Err: err})
}

// lifecycleError attributes err to the extension under code. Recovered
// panics are re-coded so the failed phase is visible in the code.
func lifecycleError(code string, desc modapi.Descriptor, err error) error {
	b := oops.Code(code).
		With("extension", desc.Name).
		With("version", desc.Version)
	if errutil.IsPanic(err) {
		if oopsErr, ok := oops.AsOops(err); ok {
			ctx := oopsErr.Context()
			b = b.With("panic", ctx["panic"]).With("stack", ctx["stack"])
		}
		return b.Errorf("%s", err.Error())
	}
	return b.Wrap(err)
}

func (m *Manager) summarize(discovered int) *Summary {
	s := &Summary{Discovered: discovered}
	m.mu.Lock()
	s.Rejected = len(m.rejected)
	m.mu.Unlock()

	for _, rec := range m.registry.Records() {
		s.Registered++
		switch rec.State {
		case StatePostEnabled:
			s.PostEnabled++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}

// Extensions returns the descriptors of every registered extension,
// including failed ones, in registration order.
func (m *Manager) Extensions() []modapi.Descriptor {
	return m.registry.All()
}

// Describe returns the descriptor registered for ext.
func (m *Manager) Describe(ext modapi.Extension) (modapi.Descriptor, bool) {
	return m.registry.Describe(ext)
}

// IsRegistered reports whether an extension named name is registered.
func (m *Manager) IsRegistered(name string) bool {
	return m.registry.IsRegistered(name)
}

// Lookup returns the extension registered under name, ignoring case.
func (m *Manager) Lookup(name string) (modapi.Extension, bool) {
	return m.registry.Lookup(name)
}

// Records returns a snapshot of every registry record.
func (m *Manager) Records() []Record {
	return m.registry.Records()
}

// Rejected returns the packages that failed before registration.
func (m *Manager) Rejected() []Rejection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Rejection, len(m.rejected))
	copy(out, m.rejected)
	return out
}

// Ready reports whether LoadAll has completed.
func (m *Manager) Ready() bool {
	return m.ready.Load()
}

// RegisterCommand registers cmd in the namespace of caller, the lower-cased
// extension name.
func (m *Manager) RegisterCommand(name string, cmd modapi.Command, caller modapi.Extension) error {
	desc, ok := m.registry.Describe(caller)
	if !ok {
		return ErrNotRegistered(callerName(caller))
	}
	return m.bridge.RegisterCommand(name, cmd, strings.ToLower(desc.Name))
}

// RegisterTabCompleter attaches completer to a command caller registered.
func (m *Manager) RegisterTabCompleter(name string, completer modapi.TabCompleter, caller modapi.Extension) error {
	desc, ok := m.registry.Describe(caller)
	if !ok {
		return ErrNotRegistered(callerName(caller))
	}
	return m.bridge.RegisterTabCompleter(name, completer, strings.ToLower(desc.Name))
}

// RegisterPermissionNode declares a permission node in the host registry.
func (m *Manager) RegisterPermissionNode(node modapi.PermissionNode) error {
	return m.bridge.RegisterPermissionNode(node)
}

func callerName(caller modapi.Extension) string {
	if caller == nil {
		return "<nil>"
	}
	return strings.TrimPrefix(reflect.TypeOf(caller).String(), "*")
}

// Registry returns the extension registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Bus returns the event bus shared with extensions.
func (m *Manager) Bus() *eventbus.Bus { return m.bus }

// Router returns the host command routing table.
func (m *Manager) Router() *command.Router { return m.router }

// Permissions returns the host permission registry.
func (m *Manager) Permissions() *permission.Registry { return m.perms }

// Layout returns the data directory layout.
func (m *Manager) Layout() datafile.Layout { return m.layout }

// Close releases every loading context.
func (m *Manager) Close() error {
	m.mu.Lock()
	contexts := m.contexts
	m.contexts = nil
	m.mu.Unlock()

	var errs []error
	for _, lc := range contexts {
		if err := lc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
