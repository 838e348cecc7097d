package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/hexauthor/internal/types"
	cfgPkg "github.com/xhad/hexauthor/pkg/config"
	"github.com/xhad/hexauthor/pkg/ingest"
	"github.com/xhad/hexauthor/pkg/llm"
	"github.com/xhad/hexauthor/pkg/processor"
	"github.com/xhad/hexauthor/pkg/scraper"
	"github.com/xhad/hexauthor/pkg/store"
	"github.com/xhad/hexauthor/pkg/tokens"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hexauthor",
	Short: "Curate tagged sections from source documents and draft proposals",
	Long: `hexauthor ingests web pages and documents, lets you mark passages as
tagged sections of a client workspace, and drafts proposals from them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}
	return cfg, nil
}

func newEmbedder(cfg *cfgPkg.Config) (*llm.Embedder, error) {
	return llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbeddingModel,
		BaseURL: cfg.LLM.BaseURL,
	})
}

// newStore opens the Postgres store, or an in-memory one when no database
// is configured.
func newStore(ctx context.Context, cfg *cfgPkg.Config, embedder types.Embedder) (types.SectionStore, error) {
	if cfg.Database.URL == "" {
		log.Printf("no database configured, sections are kept in memory")
		mem := store.NewMemory()
		if embedder != nil {
			mem = mem.WithEmbedder(embedder.CreateEmbedding)
		}
		return mem, nil
	}

	ps, err := store.NewWithConfig(ctx, store.PostgresConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
		Embedder:   embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize section store: %v", err)
	}
	return ps, nil
}

func newGenerator(cfg *cfgPkg.Config) (*llm.Generator, error) {
	gen, err := llm.NewWithConfig(llm.GeneratorConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		Budget: tokens.BudgetConfig{
			Model: cfg.Tokens.Model,
			Limit: cfg.Tokens.Limit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %v", err)
	}
	return gen, nil
}

func newIngestService(cfg *cfgPkg.Config) *ingest.Service {
	return ingest.NewWithConfig(ingest.ServiceConfig{
		Scraper: scraper.ScraperConfig{
			MaxDepth:          cfg.Scraper.MaxDepth,
			MaxPages:          cfg.Scraper.MaxPages,
			RateLimit:         cfg.Scraper.RateLimit,
			UserAgent:         cfg.Scraper.UserAgent,
			IgnorePatterns:    cfg.Scraper.IgnorePatterns,
			AllowedExtensions: cfg.Scraper.AllowedExtensions,
		},
		Processor: processor.ProcessorConfig{
			MinContentLength: cfg.Processor.MinContentLength,
			NoisePatterns:    cfg.Processor.NoisePatterns,
		},
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
