// Package main is the single-binary entrypoint for StarPath.
package main

import "github.com/starpath-app/starpath/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
