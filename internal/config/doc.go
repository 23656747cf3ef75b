// Package config resolves the knowledge base location and runtime settings.
//
// Settings are layered: built-in defaults, then the first of memex.yaml,
// memex.yml or memex.json found in the working directory or ~/.memex, then
// environment variables (a .env file is loaded first and never overrides
// variables already set).
//
//	knowledgeBase: ~/notes/kb
//	embedding:
//	  provider: ollama
//	  url: http://localhost:11434
//	  model: nomic-embed-text
//	  numCtx: 512
//	  timeout: 30s
//	chunk:
//	  size: 2000
//	  overlap: 200
//	errorDetail: false
//
// The knowledge base path comes from the --kb flag, MEMEX_KB, the config
// file or ~/.memex/knowledge-base, in that order.
package config
