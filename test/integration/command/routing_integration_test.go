// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package command_test

import (
	"context"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/holomush/modhost/internal/command"
	"github.com/holomush/modhost/internal/permission"
	"github.com/holomush/modhost/pkg/modapi"
)

// player is a sender whose permissions come from the shared registry.
type player struct {
	name     string
	op       bool
	perms    *permission.Registry
	mu       sync.Mutex
	messages []string
}

func (p *player) Name() string     { return p.name }
func (p *player) Privileged() bool { return p.op }
func (p *player) HasPermission(node string) bool {
	return p.perms.Check(p, node)
}

func (p *player) Send(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *player) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

// echoExecutor replies with its source and arguments.
type echoExecutor struct {
	source string
}

func (e echoExecutor) Run(_ context.Context, sender modapi.Sender, label string, args []string) error {
	sender.Send(e.source + "/" + label + ": " + strings.Join(args, "|"))
	return nil
}

type staticCompleter []string

func (c staticCompleter) Complete(context.Context, modapi.Sender, string, []string) []string {
	return c
}

func codeOf(err error) any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Code()
}

var _ = Describe("Command routing", func() {
	var (
		ctx    context.Context
		router *command.Router
		perms  *permission.Registry
		alice  *player
		root   *player
	)

	BeforeEach(func() {
		ctx = context.Background()
		router = command.NewRouter()
		perms = permission.NewRegistry()
		alice = &player{name: "alice", perms: perms}
		root = &player{name: "root", op: true, perms: perms}
	})

	Describe("label conflicts between extensions", func() {
		BeforeEach(func() {
			Expect(router.Register(command.Entry{Name: "say", Namespace: "chat", Source: "chat", Executor: echoExecutor{"chat"}})).To(Succeed())
			Expect(router.Register(command.Entry{Name: "say", Namespace: "rp", Source: "rp", Executor: echoExecutor{"rp"}})).To(Succeed())
		})

		It("routes the bare label to the last registration", func() {
			Expect(router.Execute(ctx, alice, "say hi")).To(Succeed())
			Expect(alice.Messages()).To(ConsistOf("rp/say: hi"))
		})

		It("keeps every namespaced label reachable", func() {
			Expect(router.Execute(ctx, alice, "chat:say hi")).To(Succeed())
			Expect(router.Execute(ctx, alice, "RP:SAY hi")).To(Succeed())
			Expect(alice.Messages()).To(Equal([]string{"chat/chat:say: hi", "rp/rp:say: hi"}))
		})

		It("keeps quoted arguments together", func() {
			Expect(router.Execute(ctx, alice, `chat:say "hello there" friend`)).To(Succeed())
			Expect(alice.Messages()).To(ConsistOf("chat/chat:say: hello there|friend"))
		})
	})

	Describe("permission-gated commands", func() {
		BeforeEach(func() {
			Expect(perms.Add(modapi.PermissionNode{Name: "chat.mute"})).To(Succeed())
			Expect(perms.Add(modapi.PermissionNode{Name: "chat.admin.kick"})).To(Succeed())
			Expect(router.Register(command.Entry{
				Name: "mute", Namespace: "chat", Source: "chat",
				Permission: "chat.mute",
				Executor:   echoExecutor{"chat"},
				Completer:  staticCompleter{"bob", "carol"},
			})).To(Succeed())
			Expect(router.Register(command.Entry{
				Name: "kick", Namespace: "chat", Source: "chat",
				Permission: "chat.admin.kick",
				Executor:   echoExecutor{"chat"},
			})).To(Succeed())
		})

		It("denies senders without the node", func() {
			err := router.Execute(ctx, alice, "mute bob")
			Expect(err).To(HaveOccurred())
			Expect(codeOf(err)).To(Equal(command.CodePermissionDenied))
			Expect(command.SenderMessage(err)).To(ContainSubstring("permission"))
			Expect(alice.Messages()).To(BeEmpty())
		})

		It("lets privileged senders through privileged-only nodes", func() {
			Expect(router.Execute(ctx, root, "mute bob")).To(Succeed())
			Expect(router.Execute(ctx, root, "kick bob")).To(Succeed())
		})

		It("honors single-segment glob grants", func() {
			Expect(perms.SetGrants("alice", []string{"chat.*"})).To(Succeed())

			Expect(router.Execute(ctx, alice, "mute bob")).To(Succeed())
			err := router.Execute(ctx, alice, "kick bob")
			Expect(codeOf(err)).To(Equal(command.CodePermissionDenied))
		})

		It("honors multi-segment glob grants", func() {
			Expect(perms.SetGrants("alice", []string{"chat.**"})).To(Succeed())

			Expect(router.Execute(ctx, alice, "kick bob")).To(Succeed())
		})

		It("grants children through a held parent node", func() {
			Expect(perms.Add(modapi.PermissionNode{
				Name:     "chat.moderator",
				Default:  modapi.DefaultAll,
				Children: map[string]bool{"chat.mute": true},
			})).To(Succeed())

			Expect(router.Execute(ctx, alice, "mute bob")).To(Succeed())
		})

		It("hides gated labels and completions from senders without the node", func() {
			Expect(router.Complete(ctx, alice, "chat:")).To(BeEmpty())
			Expect(router.Complete(ctx, alice, "mute ")).To(BeEmpty())

			Expect(router.Complete(ctx, root, "chat:")).To(Equal([]string{"chat:kick", "chat:mute"}))
			Expect(router.Complete(ctx, root, "mute ")).To(Equal([]string{"bob", "carol"}))
		})
	})

	It("reports unknown commands with a sender-facing message", func() {
		err := router.Execute(ctx, alice, "dance")
		Expect(codeOf(err)).To(Equal(command.CodeUnknownCommand))
		Expect(command.SenderMessage(err)).To(ContainSubstring("Unknown command"))
	})
})
