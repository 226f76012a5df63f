package main

import (
	"context"
	"fmt"
	"os"

	"github.com/r-ms/detect-spam/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "spamcheck: %v\n", err)
		os.Exit(1)
	}
}
