package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/pkg/llm"
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Draft a proposal from a workspace's sections",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

var (
	generateWorkspace string
	generateTag       string
	generateQuery     string
	generateLimit     int
)

func init() {
	generateCmd.Flags().StringVarP(&generateWorkspace, "workspace", "w", "", "Workspace to draw sections from")
	generateCmd.Flags().StringVarP(&generateTag, "tag", "t", "", "Only use sections with this tag")
	generateCmd.Flags().StringVarP(&generateQuery, "query", "q", "", "Rank sections by similarity to this text")
	generateCmd.Flags().IntVarP(&generateLimit, "limit", "n", 5, "Sections to use with --query")
	generateCmd.MarkFlagRequired("workspace")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	sections, err := newStore(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	defer sections.Close()

	var picked []models.Section
	if generateQuery != "" {
		vector, err := embedder.EmbedQuery(ctx, generateQuery)
		if err != nil {
			return err
		}
		picked, err = sections.Similar(ctx, generateWorkspace, vector, generateLimit)
		if err != nil {
			return err
		}
	} else {
		if picked, err = sections.ListSections(ctx, generateWorkspace); err != nil {
			return err
		}
	}
	picked = withTag(picked, generateTag)
	if len(picked) == 0 {
		return fmt.Errorf("no sections found in workspace %s", generateWorkspace)
	}

	req := llm.Request{Prompt: args[0]}
	for _, s := range picked {
		req.Sections = append(req.Sections, s.Content)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	usage := gen.Usage(req)
	color.Blue("Using %d sections, %d of %d tokens", len(picked), usage.Total, usage.Limit)
	if usage.Exceeded {
		color.Red("Over the token budget by %d tokens; narrow the sections with --tag or --query", -usage.Remaining)
		return llm.ErrBudgetExceeded
	}

	stream, err := gen.Stream(ctx, req)
	if err != nil {
		return err
	}

	assistant := color.New(color.FgCyan).PrintfFunc()
	fmt.Print("\n")
	for piece := range stream {
		assistant("%s", piece)
	}
	fmt.Print("\n")
	return nil
}

func withTag(sections []models.Section, tag string) []models.Section {
	if tag == "" {
		return sections
	}
	var out []models.Section
	for _, s := range sections {
		for _, t := range s.Tags {
			if t == tag {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
