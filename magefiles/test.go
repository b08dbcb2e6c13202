//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// envPostgresDSN enables the Postgres cases of the store tests.
const envPostgresDSN = "CRUDKIT_TEST_POSTGRES_DSN"

// Test groups test targets (all, unit, postgres).
type Test mg.Namespace

// All runs every test with the race detector.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Unit runs the tests with the Postgres DSN cleared, so only SQLite is used.
func (Test) Unit() error {
	return sh.RunWithV(map[string]string{envPostgresDSN: ""}, binGo, "test", "./...")
}

// Postgres starts a throwaway Postgres container and runs the store tests
// against it. An existing CRUDKIT_TEST_POSTGRES_DSN is used
// as is.
func (Test) Postgres() error {
	if dsn := os.Getenv(envPostgresDSN); dsn != "" {
		return runStoreTests(dsn)
	}

	rt := containerRuntime()
	if rt == "" {
		return fmt.Errorf("no container runtime found (tried podman, docker)")
	}
	dsn, err := startPostgres(rt)
	if err != nil {
		return err
	}
	defer stopPostgres(rt)
	return runStoreTests(dsn)
}

func runStoreTests(dsn string) error {
	return sh.RunWithV(map[string]string{envPostgresDSN: dsn},
		binGo, "test", "-count=1", "./internal/store/...")
}
