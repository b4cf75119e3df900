package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"restmold/internal/app"
)

func main() {
	configDir := flag.String("config", "config", "directory containing base.yaml and <env>.yaml")
	flag.Parse()

	application, err := app.New(context.Background(), app.Options{ConfigDir: *configDir})
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
