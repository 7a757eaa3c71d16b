package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/kasir/internal/cli"
)

func main() {
	// KASIR_* settings may come from a .env file next to the binary.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
