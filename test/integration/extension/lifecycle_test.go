// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package extension_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/holomush/modhost/internal/datafile"
	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/internal/extension/script"
	"github.com/holomush/modhost/pkg/modapi"
)

// examplesDir holds the example extensions shipped with the repository.
var examplesDir = filepath.Join("..", "..", "..", "extensions")

// recordingSender answers permission checks through the host registry.
type recordingSender struct {
	name     string
	check    func(node string) bool
	messages []string
}

func (s *recordingSender) Name() string                  { return s.name }
func (s *recordingSender) Privileged() bool              { return false }
func (s *recordingSender) HasPermission(node string) bool { return s.check(node) }
func (s *recordingSender) Send(msg string)               { s.messages = append(s.messages, msg) }

// copyFile copies an example file into the modules directory.
func copyFile(src, dst string) {
	data, err := os.ReadFile(src)
	Expect(err).NotTo(HaveOccurred())
	Expect(os.MkdirAll(filepath.Dir(dst), 0o750)).To(Succeed())
	Expect(os.WriteFile(dst, data, 0o600)).To(Succeed())
}

// zipDir packs dir into a zip archive at dst, with paths relative to dir.
func zipDir(dir, dst string) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	Expect(err).NotTo(HaveOccurred())
	Expect(zw.Close()).To(Succeed())
	Expect(os.MkdirAll(filepath.Dir(dst), 0o750)).To(Succeed())
	Expect(os.WriteFile(dst, buf.Bytes(), 0o600)).To(Succeed())
}

var _ = Describe("Loading extensions from disk", func() {
	var (
		ctx     context.Context
		layout  datafile.Layout
		manager *extension.Manager
		logs    *bytes.Buffer
		shared  bool
	)

	BeforeEach(func() {
		ctx = context.Background()
		layout = datafile.Layout{Root: GinkgoT().TempDir()}
		logs = &bytes.Buffer{}
		shared = true

		copyFile(filepath.Join(examplesDir, "greeter", "greeter.lua"), filepath.Join(layout.Modules(), "greeter.lua"))
		zipDir(filepath.Join(examplesDir, "welcome"), filepath.Join(layout.Modules(), "packs", "welcome.zip"))
	})

	JustBeforeEach(func() {
		logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		manager = extension.NewManager(layout,
			extension.WithRuntime(script.New()),
			extension.WithSharedContext(shared),
			extension.WithLogger(logger),
		)
		Expect(extension.RegisterBuiltins(manager)).To(Succeed())
		DeferCleanup(manager.Close)
	})

	newPlayer := func(name string) *recordingSender {
		s := &recordingSender{name: name}
		s.check = func(node string) bool { return manager.Permissions().Check(s, node) }
		return s
	}

	Context("with the example extensions", func() {
		It("drives both through the full lifecycle", func() {
			summary, err := manager.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Discovered).To(Equal(2))
			Expect(summary.PostEnabled).To(Equal(2))
			Expect(manager.Ready()).To(BeTrue())

			for _, rec := range manager.Records() {
				Expect(rec.State).To(Equal(extension.StatePostEnabled), "%s: %v", rec.Descriptor.Name, rec.Err)
			}
			Expect(manager.IsRegistered("Welcome")).To(BeTrue())
		})

		It("routes commands and events between extensions", func() {
			_, err := manager.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			ada := newPlayer("Ada")
			Expect(manager.Router().Execute(ctx, ada, "greet Grace")).To(Succeed())
			Expect(manager.Router().Execute(ctx, ada, "greeter:greet")).To(Succeed())
			Expect(manager.Router().Execute(ctx, ada, "welcomes")).To(Succeed())
			Expect(ada.messages).To(Equal([]string{
				"Hello, Grace!",
				"Hello, Ada!",
				"Greetings so far: 2",
			}))

			storage := datafile.NewNamespace(filepath.Join(layout.Storage(), "welcome.yml"))
			Expect(storage.Read()).To(Succeed())
			last, ok := storage.Get("last")
			Expect(ok).To(BeTrue())
			Expect(last).To(Equal("Ada"))
		})

		It("writes default configuration on first enable", func() {
			_, err := manager.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			cfg := datafile.NewNamespace(filepath.Join(layout.Config(), "greeter.yml"))
			Expect(cfg.Read()).To(Succeed())
			greeting, _ := cfg.Get("greeting")
			Expect(greeting).To(Equal("Hello"))
		})

		It("lists extensions through the built-in command", func() {
			_, err := manager.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			ada := newPlayer("Ada")
			Expect(manager.Router().Execute(ctx, ada, "extensions")).To(Succeed())
			Expect(ada.messages).To(HaveLen(1))
			Expect(ada.messages[0]).To(ContainSubstring("greeter 1.0.0 [post_enabled]"))
			Expect(ada.messages[0]).To(ContainSubstring("welcome 0.2.0 [post_enabled]"))

			Expect(manager.Router().Complete(ctx, ada, "extensions w")).To(Equal([]string{"welcome"}))
			Expect(manager.Router().Complete(ctx, ada, "greet ")).To(Equal([]string{"everyone", "Ada"}))
		})
	})

	Context("with isolated loading contexts", func() {
		BeforeEach(func() {
			shared = false
		})

		It("still delivers events across states", func() {
			_, err := manager.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			ada := newPlayer("Ada")
			Expect(manager.Router().Execute(ctx, ada, "greet")).To(Succeed())
			Expect(manager.Router().Execute(ctx, ada, "welcomes")).To(Succeed())
			Expect(ada.messages).To(ContainElement("Greetings so far: 1"))
		})
	})

	Context("with a broken package next to good ones", func() {
		BeforeEach(func() {
			copyFile(filepath.Join(examplesDir, "greeter", "greeter.lua"), filepath.Join(layout.Modules(), "copy", "greeter.lua"))
			Expect(os.WriteFile(filepath.Join(layout.Modules(), "broken.lua"),
				[]byte(`return { name = "broken", version = "1", author = "x", enable = function() error("kaput") end }`), 0o600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(layout.Modules(), "nameless.lua"),
				[]byte(`return { version = "1", author = "x" }`), 0o600)).To(Succeed())
		})

		It("isolates every failure", func() {
			summary, err := manager.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Discovered).To(Equal(5))
			Expect(summary.Rejected).To(Equal(2))
			Expect(summary.Failed).To(Equal(1))
			Expect(summary.PostEnabled).To(Equal(2))

			broken, ok := manager.Registry().Record("broken")
			Expect(ok).To(BeTrue())
			Expect(broken.State).To(Equal(extension.StateFailed))
			oopsErr, ok := oops.AsOops(broken.Err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal(extension.CodeEnableFailed))

			var codes []any
			for _, r := range manager.Rejected() {
				oopsErr, ok := oops.AsOops(r.Err)
				Expect(ok).To(BeTrue())
				codes = append(codes, oopsErr.Code())
			}
			Expect(codes).To(ConsistOf(extension.CodeDuplicate, extension.CodeInvalidManifest))
			Expect(logs.String()).To(ContainSubstring("kaput"))
		})
	})
})

var _ modapi.Sender = (*recordingSender)(nil)
