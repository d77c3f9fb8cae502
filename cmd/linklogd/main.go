package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("linklogd exited with error", "error", err)
		os.Exit(1)
	}
}
