package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/rmitchellscott/chatsnap/internal/cli"
	"github.com/rmitchellscott/chatsnap/internal/logging"
)

func main() {
	_ = godotenv.Load()
	logging.Setup(logging.OptionsFromEnv())

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
