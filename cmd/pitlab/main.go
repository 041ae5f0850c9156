package main

import (
	"os"

	"github.com/wonny/pitlab/cmd/pitlab/commands"
)

// main is the entry point for the pitlab CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/pitlab [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
