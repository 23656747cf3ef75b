package compiler

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dshills/memex-mcp/pkg/types"
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---[ \t]*\n(.*?)\n---[ \t]*(?:\n|$)`)
	fieldPattern       = regexp.MustCompile(`^(\w+):\s*(.+)$`)
	headingPattern     = regexp.MustCompile(`^#{1,6}\s+(.+?)(?:\s+#+)?\s*$`)
	fencePattern       = regexp.MustCompile("^\\s{0,3}(```|~~~)")
	slugPattern        = regexp.MustCompile(`[^a-z0-9]+`)
)

// Compiler turns markdown files into structured documents
type Compiler struct {
	md  goldmark.Markdown
	now func() time.Time
}

// New creates a new Compiler instance
func New() *Compiler {
	return &Compiler{
		md:  goldmark.New(),
		now: time.Now,
	}
}

// Compile parses markdown with optional frontmatter. It never fails: malformed
// frontmatter is treated as absent.
func (c *Compiler) Compile(markdown, filename string) *types.CompiledDocument {
	src := strings.ReplaceAll(markdown, "\r\n", "\n")

	metadata, body := ParseFrontmatter(src)

	name, _ := metadata["name"].(string)
	if name == "" {
		name = defaultName(filename)
	}

	return &types.CompiledDocument{
		Name:       name,
		Filename:   filename,
		Metadata:   metadata,
		Content:    c.PlainText(body),
		Sections:   SplitSections(body),
		CompiledAt: c.now(),
	}
}

// ParseFrontmatter splits a leading --- block from the body. A missing or
// unterminated block yields empty metadata and the input unchanged.
func ParseFrontmatter(src string) (map[string]any, string) {
	metadata := make(map[string]any)

	m := frontmatterPattern.FindStringSubmatchIndex(src)
	if m == nil {
		return metadata, src
	}

	block := src[m[2]:m[3]]
	for _, line := range strings.Split(block, "\n") {
		fm := fieldPattern.FindStringSubmatch(strings.TrimSpace(line))
		if fm == nil {
			continue
		}
		metadata[fm[1]] = parseValue(strings.TrimSpace(fm[2]))
	}

	return metadata, src[m[1]:]
}

// parseValue handles scalars and flat [a, b] lists
func parseValue(raw string) any {
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		items := make([]string, 0)
		if inner == "" {
			return items
		}
		for _, part := range strings.Split(inner, ",") {
			if item := unquote(strings.TrimSpace(part)); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	return unquote(raw)
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// SplitSections splits a body on ATX headings. Text before the first heading
// belongs to no section. Headings inside fenced code are ignored.
func SplitSections(body string) []types.Section {
	sections := make([]types.Section, 0)

	var (
		current *types.Section
		buf     strings.Builder
		inFence bool
		fence   string
	)

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(buf.String())
			sections = append(sections, *current)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(body, "\n") {
		if fm := fencePattern.FindStringSubmatch(line); fm != nil {
			if !inFence {
				inFence, fence = true, fm[1]
			} else if fm[1] == fence {
				inFence = false
			}
		}

		if !inFence {
			if hm := headingPattern.FindStringSubmatch(line); hm != nil {
				flush()
				current = &types.Section{Title: strings.TrimSpace(hm[1])}
				continue
			}
		}

		if current != nil {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	flush()

	return sections
}

// PlainText renders markdown to searchable text. Raw HTML is dropped, link
// targets are dropped and code keeps its text.
func (c *Compiler) PlainText(markdown string) string {
	src := []byte(markdown)
	doc := c.md.Parser().Parse(text.NewReader(src))

	var out bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				out.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					out.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				out.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				out.Write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					out.Write(seg.Value(src))
				}
				out.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		}

		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			out.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	return collapseBlankLines(out.String())
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Slugify lowercases s and collapses every run of non-alphanumerics into a
// single hyphen. Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func defaultName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == "" {
		return ""
	}
	return Slugify(base)
}
