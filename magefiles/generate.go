//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Generate builds the CLI and generates one article for parent from the
// outline file.
func Generate(parent, outline string) error {
	mg.Deps(Init, Build)
	return runCLI("generate", "--parent", parent, "--outline", outline)
}

// Sessions lists the most recent sessions in the local store.
func Sessions() error {
	mg.Deps(Build)
	return runCLI("list")
}

// Recover fails sessions left orchestrating by a process that exited.
func Recover() error {
	mg.Deps(Build)
	return runCLI("recover")
}

func runCLI(args ...string) error {
	if err := sh.RunV(filepath.Join(binDir, binName), args...); err != nil {
		return fmt.Errorf("%s %s: %w", binName, args[0], err)
	}
	return nil
}
