//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Postgres test container constants.
const (
	pgImage     = "postgres:17-alpine"
	pgContainer = "crudkit-test-postgres"
	pgPort      = "55432"
	pgPassword  = "crudkit"
	pgDSN       = "postgres://postgres:" + pgPassword + "@localhost:" + pgPort + "/postgres?sslmode=disable"
	pgReadyWait = 30 * time.Second
)

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

// startPostgres runs a disposable Postgres container and waits until it
// accepts connections. It returns the DSN to reach it.
func startPostgres(rt string) (string, error) {
	stopPostgres(rt)
	fmt.Fprintln(os.Stderr, "Starting Postgres container...")
	cmd := exec.Command(rt, "run", "-d", "--rm",
		"--name", pgContainer,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-p", pgPort+":5432",
		pgImage)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("starting postgres container: %w", err)
	}

	deadline := time.Now().Add(pgReadyWait)
	for time.Now().Before(deadline) {
		ready := exec.Command(rt, "exec", pgContainer, "pg_isready", "-U", "postgres", "-h", "localhost")
		if ready.Run() == nil {
			return pgDSN, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	stopPostgres(rt)
	return "", fmt.Errorf("postgres container not ready after %s", pgReadyWait)
}

// stopPostgres removes the test container. Errors are ignored because
// the container may not exist.
func stopPostgres(rt string) {
	_ = exec.Command(rt, "rm", "-f", pgContainer).Run()
}
