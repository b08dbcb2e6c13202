//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for crudkit using Mage.
//
// Usage:
//
//	mage build             Compile the crudkit binary to bin/
//	mage install           Install crudkit to GOPATH/bin
//	mage clean             Remove build artifacts
//	mage serve             Build and serve the API with the local config
//	mage test:all          Run all tests with the race detector
//	mage test:unit         Run tests that need no external services
//	mage test:postgres     Run the store and engine tests against a Postgres container
//	mage lint              Run golangci-lint
//	mage stats             Print Go line counts per package
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "crudkit"
	binaryDir  = "bin"
	cmdDir     = "./cmd/crudkit"
)

// Build compiles the crudkit binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", binaryPath(), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), binaryPath())
}

// Serve builds crudkit, runs init, and serves the API in the foreground.
func Serve() error {
	mg.Deps(Build)
	if err := sh.RunV(binaryPath(), "init"); err != nil {
		return err
	}
	return sh.RunV(binaryPath(), "serve")
}

func binaryPath() string {
	return filepath.Join(binaryDir, binaryName)
}
