package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xhad/hexauthor/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST and websocket server",
	RunE:  runServe,
}

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	sections, err := newStore(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	defer sections.Close()

	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	jobs := newIngestService(cfg)
	srv := server.NewServer(server.Config{
		MinSelectionLength: cfg.Selection.MinLength,
		SelectionDebounce:  cfg.Selection.Debounce,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
	}, sections, jobs, generator, embedder)

	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
