// Package main provides the crudkit CLI.
package main

import "github.com/mesh-intelligence/crudkit/internal/cli"

func main() {
	cli.Execute()
}
