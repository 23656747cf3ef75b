// Package content manages the markdown files of a knowledge base
// collection and keeps the vector index in step with them.
//
// Each collection (guides or contexts) is a directory of {slug}.md files
// with a frontmatter header:
//
//	---
//	uuid: 7d4f0b8e-2a59-4c1e-9b7a-3f1d2c4e5a6b
//	title: "Git Workflow"
//	type: guide
//	tags: ["git", "process"]
//	created: 2025-01-31
//	---
//
// The uuid is the stable address of a document; the slug is derived from
// the title and changes with it.
package content
