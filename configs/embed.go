// Package configs embeds the commented configuration templates written by
// `docindex config init`.
//
// Load order (later wins):
//  1. Built-in defaults
//  2. User config (~/.config/docindex/config.yaml)
//  3. Project config (./.docindex.yaml)
//  4. .env, .env.local and DOCINDEX_* environment variables
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings: the storage root and the
// embedding provider.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds settings versioned with a document folder:
// chunking, index type and search weights.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
