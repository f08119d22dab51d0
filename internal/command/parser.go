// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"
)

// lineLexer splits a command line into bare words and double-quoted strings.
var lineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Word", Pattern: `[^\s"]+`},
	{Name: "whitespace", Pattern: `\s+`},
})

// commandLine is the grammar: label { word | "quoted string" }.
type commandLine struct {
	Label string   `parser:"@Word"`
	Args  []string `parser:"@(Word | String)*"`
}

var lineParser *participle.Parser[commandLine]

func init() {
	var err error
	lineParser, err = participle.Build[commandLine](
		participle.Lexer(lineLexer),
		participle.Unquote("String"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to build command line parser: %v", err))
	}
}

// ParsedCommand represents a parsed command input.
type ParsedCommand struct {
	Label string   // command label, possibly namespaced ("greeter:hello")
	Args  []string // arguments with quotes removed
	Raw   string   // original input
}

// Parse splits raw input into a label and arguments. Double-quoted arguments
// may contain whitespace and backslash escapes.
func Parse(input string) (*ParsedCommand, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, oops.Code(CodeEmptyInput).Errorf("no command provided")
	}

	line, err := lineParser.ParseString("", trimmed)
	if err != nil {
		return nil, oops.Code(CodeInvalidSyntax).With("input", input).Wrap(err)
	}

	args := line.Args
	if args == nil {
		args = []string{}
	}
	return &ParsedCommand{
		Label: strings.ToLower(line.Label),
		Args:  args,
		Raw:   input,
	}, nil
}

// parsePartial parses a line that is still being typed. Trailing whitespace
// starts a new, empty argument.
func parsePartial(input string) (*ParsedCommand, error) {
	parsed, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if strings.TrimRight(input, " \t") != input {
		parsed.Args = append(parsed.Args, "")
	}
	return parsed, nil
}
