// Package crudkit holds build-level constants for the crudkit module.
package crudkit

// Version is the crudkit release version.
const Version = "0.1.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/crudkit"
