package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGuide = `---
uuid: 7f0c2d9e-1b5a-4c3e-9d8f-2a6b4e1c0f3d
title: "Testing Guide"
type: guide
tags: ["go", "testing"]
created: 2025-01-15
---
Intro paragraph before any heading.

# Setup

Install the **tools** with <span>html</span> and [docs](https://example.com).

## Running

` + "```bash\n# not a heading\ngo test ./...\n```" + `

# Empty

`

func TestCompile_Frontmatter(t *testing.T) {
	c := New()
	doc := c.Compile(sampleGuide, "testing-guide.md")

	assert.Equal(t, "7f0c2d9e-1b5a-4c3e-9d8f-2a6b4e1c0f3d", doc.Metadata["uuid"])
	assert.Equal(t, "Testing Guide", doc.Metadata["title"])
	assert.Equal(t, "guide", doc.Metadata["type"])
	assert.Equal(t, []string{"go", "testing"}, doc.Metadata["tags"])
	assert.Equal(t, "2025-01-15", doc.Metadata["created"])
	assert.Equal(t, "testing-guide", doc.Name)
	assert.Equal(t, "testing-guide.md", doc.Filename)
	assert.False(t, doc.CompiledAt.IsZero())
}

func TestCompile_Sections(t *testing.T) {
	c := New()
	doc := c.Compile(sampleGuide, "testing-guide.md")

	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "Setup", doc.Sections[0].Title)
	assert.Contains(t, doc.Sections[0].Content, "Install the **tools**")
	assert.Equal(t, "Running", doc.Sections[1].Title)
	assert.Contains(t, doc.Sections[1].Content, "# not a heading")
	assert.Equal(t, "Empty", doc.Sections[2].Title)
	assert.Equal(t, "", doc.Sections[2].Content)
}

func TestCompile_PlainText(t *testing.T) {
	c := New()
	doc := c.Compile(sampleGuide, "testing-guide.md")

	assert.Contains(t, doc.Content, "Intro paragraph before any heading.")
	assert.Contains(t, doc.Content, "Install the tools with")
	assert.Contains(t, doc.Content, "docs")
	assert.Contains(t, doc.Content, "go test ./...")
	assert.NotContains(t, doc.Content, "<span>")
	assert.NotContains(t, doc.Content, "https://example.com")
	assert.NotContains(t, doc.Content, "uuid:")
	assert.NotContains(t, doc.Content, "**")
}

func TestCompile_NoFrontmatter(t *testing.T) {
	c := New()
	doc := c.Compile("# Title\n\nbody", "My_Notes-File.md")

	assert.Empty(t, doc.Metadata)
	assert.Equal(t, "my-notes-file", doc.Name)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "body", doc.Sections[0].Content)
}

func TestCompile_UnterminatedFrontmatter(t *testing.T) {
	c := New()
	src := "---\ntitle: Broken\n\n# Heading\ntext"
	doc := c.Compile(src, "broken.md")

	assert.Empty(t, doc.Metadata)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Heading", doc.Sections[0].Title)
}

func TestCompile_NameFromMetadata(t *testing.T) {
	c := New()
	doc := c.Compile("---\nname: Custom Name\n---\nbody", "file.md")
	assert.Equal(t, "Custom Name", doc.Name)
}

func TestCompile_CRLF(t *testing.T) {
	c := New()
	doc := c.Compile("---\r\ntitle: 'Windows'\r\n---\r\n# A\r\ntext\r\n", "w.md")
	assert.Equal(t, "Windows", doc.Metadata["title"])
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "text", doc.Sections[0].Content)
}

func TestParseFrontmatter_Lists(t *testing.T) {
	meta, body := ParseFrontmatter("---\ntags: []\nother: [a, 'b' , \"c\"]\n---\nrest")
	assert.Equal(t, []string{}, meta["tags"])
	assert.Equal(t, []string{"a", "b", "c"}, meta["other"])
	assert.Equal(t, "rest", body)
}

func TestCompile_Unicode(t *testing.T) {
	c := New()
	doc := c.Compile("---\ntitle: \"Emoji 🚀\"\n---\n# 日本語\n\nこんにちは 🎉", "u.md")
	assert.Equal(t, "Emoji 🚀", doc.Metadata["title"])
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "日本語", doc.Sections[0].Title)
	assert.Equal(t, "こんにちは 🎉", doc.Sections[0].Content)
	assert.Contains(t, doc.Content, "こんにちは 🎉")
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Testing Guide":       "testing-guide",
		"  Spaces  Around ":   "spaces-around",
		"snake_case-and-dash": "snake-case-and-dash",
		"---":                 "",
		"Go 1.25 Release":     "go-1-25-release",
	}
	for in, want := range tests {
		got := Slugify(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, Slugify(got), "slugify must be idempotent for %q", in)
	}
}
