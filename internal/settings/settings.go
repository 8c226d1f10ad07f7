// Package settings reads the project includes declared in a Gradle settings
// script, Groovy or Kotlin, using tree-sitter.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/groovy"
	"github.com/smacker/go-tree-sitter/kotlin"
)

// FileNames lists the settings scripts looked up in the project root, in
// lookup order.
var FileNames = []string{"settings.gradle.kts", "settings.gradle"}

// Settings is what a settings script declares.
type Settings struct {
	File            string
	RootProjectName string
	Includes        []string // normalized project paths, e.g. ":app:core"
}

// Find returns the settings script of root, or "" when there is none.
func Find(root string) string {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load finds and parses the settings script of root. A project without one
// yields nil.
func Load(ctx context.Context, root string) (*Settings, error) {
	p := Find(root)
	if p == "" {
		return nil, nil
	}
	s, err := ParseFile(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return s, err
}

// ParseFile parses a single settings script. The grammar is picked from the
// file extension.
func ParseFile(ctx context.Context, path string) (*Settings, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	s, err := Parse(ctx, src, strings.HasSuffix(path, ".kts"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	s.File = path
	return s, nil
}

// Parse parses settings source, Kotlin script when kts is set and Groovy
// otherwise.
func Parse(ctx context.Context, src []byte, kts bool) (*Settings, error) {
	lang := groovy.GetLanguage()
	if kts {
		lang = kotlin.GetLanguage()
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return scan(tokenize(tree.RootNode(), src)), nil
}

type tokenKind int

const (
	tokOther tokenKind = iota
	tokString
)

type token struct {
	kind tokenKind
	text string
}

// tokenize flattens the tree into leaf tokens. String literals are emitted as
// one token with their quotes stripped; comments are dropped.
func tokenize(root *sitter.Node, src []byte) []token {
	var out []token
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		typ := n.Type()
		switch {
		case strings.Contains(typ, "comment"):
			return
		case strings.Contains(typ, "string") && n.IsNamed():
			out = append(out, token{kind: tokString, text: unquote(n.Content(src))})
			return
		case n.ChildCount() == 0:
			out = append(out, token{kind: tokOther, text: n.Content(src)})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// scan collects the arguments of include calls, written either as
// include(":a", ":b") or include ':a', ':b', and the root project name.
func scan(tokens []token) *Settings {
	s := &Settings{}
	seen := make(map[string]bool)

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind == tokOther && t.text == "name" && i >= 2 && tokens[i-2].text == "rootProject" &&
			i+2 < len(tokens) && tokens[i+1].text == "=" && tokens[i+2].kind == tokString {
			s.RootProjectName = tokens[i+2].text
			continue
		}
		if t.kind != tokOther || t.text != "include" || i+1 >= len(tokens) {
			continue
		}
		if next := tokens[i+1]; next.kind != tokString && next.text != "(" {
			continue
		}

		depth := 0
		j := i + 1
	args:
		for ; j < len(tokens); j++ {
			switch tok := tokens[j]; {
			case tok.kind == tokString:
				if p := normalize(tok.text); p != "" && !seen[p] {
					seen[p] = true
					s.Includes = append(s.Includes, p)
				}
			case tok.text == "(":
				depth++
			case tok.text == ")":
				depth--
				if depth <= 0 {
					break args
				}
			case tok.text == ",":
			default:
				if depth == 0 {
					j--
					break args
				}
			}
		}
		i = j
	}
	return s
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.ContainsAny(p, "$/\\") {
		return ""
	}
	if !strings.HasPrefix(p, ":") {
		p = ":" + p
	}
	return p
}
