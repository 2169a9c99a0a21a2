package main

import (
	"fmt"
	"os"
	"strings"

	"poolmon/internal/commands"
)

// VERSION is set during build via ldflags
var VERSION string

// getCurrentVersion retrieves the current version from build flags or version.txt
func getCurrentVersion() string {
	version := VERSION
	if version == "" {
		if versionData, err := os.ReadFile("version.txt"); err == nil {
			version = strings.TrimSpace(string(versionData))
		}
	}
	if version == "" {
		version = "dev"
	}
	return version
}

func main() {
	commands.GetCurrentVersion = getCurrentVersion

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
