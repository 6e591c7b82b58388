// Package config parses the two ASCII configuration grammars described
// in §6: mixer path files ([General]/[Jack]/[Element]/[Option]
// sections) and profile-set files ([General]/[Mapping]/[Profile]/
// [DecibelFix] sections). Both grammars allow an arbitrary number of
// same-kind sections distinguished by a bracketed argument
// ("[Element name]", "[Option name:opt]", ...), which general-purpose
// ini/toml/yaml decoders in the ecosystem don't model well; this
// package implements the small bespoke scanner the grammar actually
// needs, in the spirit of the line-oriented parsers the reference
// server itself uses for this file format.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// section is one `[Kind Arg]` block with its key=value body, in
// declaration order.
type section struct {
	Kind string
	Arg  string
	Line int
	kv   []kv
}

type kv struct {
	Key, Value string
	Line       int
}

// Get returns the value of the last occurrence of key in the section,
// or "" if absent.
func (s *section) Get(key string) (string, bool) {
	val, ok := "", false
	for _, e := range s.kv {
		if e.Key == key {
			val, ok = e.Value, true
		}
	}
	return val, ok
}

// All returns the value of every occurrence of key, in declaration
// order, including repeats.
func (s *section) All(key string) []string {
	var out []string
	for _, e := range s.kv {
		if e.Key == key {
			out = append(out, e.Value)
		}
	}
	return out
}

// scan splits r into sections. Lines are trimmed; blank lines and lines
// starting with ';' or '#' are ignored; a `[Kind Arg]` line (Arg
// optional) starts a new section; every other non-blank line must be
// `key = value`, optionally with a trailing `# comment`.
func scan(r io.Reader) ([]*section, error) {
	var sections []*section
	var cur *section

	s := bufio.NewScanner(r)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			header := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("config: line %d: unterminated section header %q", lineNo, line)
			}
			kind, arg, _ := strings.Cut(header, " ")
			cur = &section{Kind: kind, Arg: strings.TrimSpace(arg), Line: lineNo}
			sections = append(sections, cur)
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("config: line %d: key=value outside any section", lineNo)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: line %d: expected key = value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = stripInlineComment(strings.TrimSpace(value))
		cur.kv = append(cur.kv, kv{Key: key, Value: value, Line: lineNo})
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return sections, nil
}

func stripInlineComment(v string) string {
	if i := strings.Index(v, " #"); i >= 0 {
		return strings.TrimSpace(v[:i])
	}
	return v
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("config: invalid bool %q", v)
}
