package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/internal/types"
	"github.com/xhad/hexauthor/pkg/ingest"
	"github.com/xhad/hexauthor/pkg/processor"
	"github.com/xhad/hexauthor/pkg/selection"
)

var curateCmd = &cobra.Command{
	Use:   "curate [url|file]",
	Short: "Interactively mark tagged sections in a document and save them to a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runCurate,
}

func init() {
	rootCmd.AddCommand(curateCmd)
}

const curateHelp = `Commands:
  select <phrase> [#n]   select the n-th occurrence of phrase (default #1)
  para <n>               select paragraph n
  tag <name>             confirm the pending selection with a tag
  cancel                 drop the pending selection
  ls                     list chunks
  rm <n>                 remove chunk n from the list
  show                   print the document with chunks highlighted
  tags [partial]         suggest tags
  save <workspace> [label]
  exit`

type action struct {
	name       string
	arg        string
	occurrence int
}

// parseAction reads one curation command line.
func parseAction(line string) (action, error) {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	a := action{name: strings.ToLower(name), arg: rest}

	switch a.name {
	case "select":
		if rest == "" {
			return a, fmt.Errorf("select needs a phrase")
		}
		if i := strings.LastIndex(rest, " #"); i >= 0 {
			if n, err := strconv.Atoi(rest[i+2:]); err == nil {
				if n < 1 {
					return a, fmt.Errorf("occurrence must be 1 or more")
				}
				a.arg = rest[:i]
				a.occurrence = n - 1
			}
		}
	case "tag", "save":
		if rest == "" {
			return a, fmt.Errorf("%s needs an argument", a.name)
		}
	case "rm", "para":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return a, fmt.Errorf("%s needs a number", a.name)
		}
		a.occurrence = n
	case "cancel", "ls", "show", "tags", "help", "exit", "quit":
	case "":
		return a, fmt.Errorf("empty command")
	default:
		return a, fmt.Errorf("unknown command %q", name)
	}
	return a, nil
}

func runCurate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	doc, source, err := loadDocument(ctx, newIngestService(cfg), args[0])
	if err != nil {
		return err
	}

	var embedder types.Embedder
	if cfg.Database.URL != "" {
		if embedder, err = newEmbedder(cfg); err != nil {
			return err
		}
	}
	sections, err := newStore(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	defer sections.Close()

	session := selection.NewWithConfig(doc.Content, selection.SessionConfig{
		MinLength: cfg.Selection.MinLength,
		OnTextSelection: func(text string, r models.Range) {
			color.Yellow("Selected %q at [%d, %d). Confirm with: tag <name>", text, r.Start, r.End)
		},
		OnRemoveChunk: func(id string) {
			color.Yellow("Removed chunk %s", id)
		},
		Notify: func(msg string) {
			color.Green("✓ %s", msg)
		},
	})

	color.Cyan("\n%s\n", doc.Title)
	fmt.Println(renderRuns(session.Render()))
	color.Cyan("\n%s", curateHelp)

	return curate(ctx, session, sections, source, os.Stdin, os.Stdout)
}

func loadDocument(ctx context.Context, jobs *ingest.Service, source string) (models.Document, string, error) {
	var (
		job models.IngestJob
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		job, err = jobs.SubmitURL(ctx, source)
	} else {
		f, openErr := os.Open(source)
		if openErr != nil {
			return models.Document{}, "", openErr
		}
		job, err = jobs.SubmitFile(ctx, source, f)
		f.Close()
	}
	if err != nil {
		return models.Document{}, "", err
	}

	spinner := getSpinner("Extracting content...")
	done, err := jobs.Await(ctx, job.ID)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return models.Document{}, "", err
	}
	if done.Status != models.JobDone || done.Document == nil {
		return models.Document{}, "", fmt.Errorf("extraction failed: %s", done.Error)
	}
	return *done.Document, done.Source, nil
}

// curate runs the command loop until exit or end of input.
func curate(ctx context.Context, session *selection.Session, sections types.SectionStore, source string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	prompt := color.New(color.FgGreen).FprintfFunc()

	for {
		prompt(out, "\ncurate> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		a, err := parseAction(scanner.Text())
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "%v\n", err)
			continue
		}

		switch a.name {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, curateHelp)
		case "select":
			matches := selection.NewTextBuffer(session.Document()).Occurrences(a.arg)
			if a.occurrence >= len(matches) {
				fmt.Fprintf(out, "%q occurs %d times\n", a.arg, len(matches))
				continue
			}
			if len(matches) > 1 {
				fmt.Fprintf(out, "using match %d of %d\n", a.occurrence+1, len(matches))
			}
			anchor := selection.Needle{Text: a.arg, Occurrence: a.occurrence}
			if _, ok := session.Select(selection.Selection{Text: a.arg, Anchor: anchor}); !ok {
				fmt.Fprintln(out, "selection ignored")
			}
		case "para":
			doc := session.Document()
			paragraphs := processor.Paragraphs(doc)
			if a.occurrence > len(paragraphs) {
				fmt.Fprintf(out, "no paragraph %d\n", a.occurrence)
				continue
			}
			r := paragraphs[a.occurrence-1]
			text := string([]rune(doc)[r.Start:r.End])
			if _, ok := session.Select(selection.Selection{Text: text, Anchor: r.Start}); !ok {
				fmt.Fprintln(out, "selection ignored")
			}
		case "tag":
			if _, ok := session.Confirm(a.arg); !ok {
				fmt.Fprintln(out, "nothing to tag")
			}
		case "cancel":
			session.Cancel()
		case "ls":
			listChunks(out, session.Chunks())
		case "rm":
			chunks := session.Chunks()
			if a.occurrence > len(chunks) {
				fmt.Fprintf(out, "no chunk %d\n", a.occurrence)
				continue
			}
			session.Remove(chunks[a.occurrence-1].ID)
		case "show":
			fmt.Fprintln(out, renderRuns(session.Render()))
		case "tags":
			fmt.Fprintln(out, strings.Join(session.SuggestTags(a.arg), ", "))
		case "save":
			workspace, label, _ := strings.Cut(a.arg, " ")
			if label = strings.TrimSpace(label); label == "" {
				label = source
			}
			inputs := session.SectionInputs(label)
			if len(inputs) == 0 {
				fmt.Fprintln(out, "no chunks to save")
				continue
			}
			created, err := sections.BulkCreate(ctx, workspace, label, inputs)
			if err != nil {
				color.New(color.FgRed).Fprintf(out, "save failed: %v\n", err)
				continue
			}
			color.New(color.FgGreen).Fprintf(out, "✓ Saved %d sections to %s\n", len(created), workspace)
		}
	}
}

func listChunks(out io.Writer, chunks []models.Chunk) {
	if len(chunks) == 0 {
		fmt.Fprintln(out, "no chunks yet")
		return
	}
	for i, c := range chunks {
		fmt.Fprintf(out, "%d. [%s] %q (%d-%d)\n", i+1, c.Tag, c.Text, c.StartIndex, c.EndIndex)
	}
}

var highlight = color.New(color.BgYellow, color.FgBlack)

// renderRuns prints chunk runs highlighted and followed by their tag.
func renderRuns(runs []models.Run) string {
	var b strings.Builder
	for _, r := range runs {
		if !r.IsChunk() {
			b.WriteString(r.Text)
			continue
		}
		b.WriteString(highlight.Sprint(r.Text))
		b.WriteString(color.MagentaString("[%s]", r.Tag))
	}
	return b.String()
}
