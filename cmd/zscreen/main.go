package main

import (
	"os"

	"github.com/wonny/zscreen/cmd/zscreen/commands"
)

// main is the entry point for the zscreen CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/zscreen [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
