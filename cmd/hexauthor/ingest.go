package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/pkg/poller"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [url|file]",
	Short: "Submit a page or document to a running server and wait for its text",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var (
	ingestServer   string
	ingestOut      string
	ingestInterval time.Duration
	ingestAttempts int
)

func init() {
	ingestCmd.Flags().StringVar(&ingestServer, "server", "", "Server base URL (default http://localhost:<server.port>)")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "Write the extracted text to this file")
	ingestCmd.Flags().DurationVar(&ingestInterval, "interval", 2*time.Second, "Polling interval")
	ingestCmd.Flags().IntVar(&ingestAttempts, "max-attempts", 90, "Give up after this many polls (0 polls forever)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base := ingestServer
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	client := &jobClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: 30 * time.Second}}

	ctx := cmd.Context()
	source := args[0]

	var job models.IngestJob
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		job, err = client.submitURL(ctx, source)
	} else {
		job, err = client.submitFile(ctx, source)
	}
	if err != nil {
		return err
	}
	color.Blue("Submitted %s as job %s", job.Source, job.ID)

	spinner := getSpinner("Extracting content...")
	done, err := poller.Poll(ctx, func(ctx context.Context) (models.IngestJob, bool, error) {
		j, err := client.job(ctx, job.ID)
		return j, j.Finished(), err
	}, poller.Config{
		Interval:    ingestInterval,
		MaxAttempts: ingestAttempts,
		OnAttempt: func(attempt int) {
			spinner.Describe(color.CyanString("Extracting content... (check %d)", attempt))
			spinner.Add(1)
		},
	})
	spinner.Finish()
	fmt.Print("\n")
	if err != nil {
		return fmt.Errorf("failed waiting for job %s: %v", job.ID, err)
	}
	if done.Status == models.JobFailed || done.Document == nil {
		return fmt.Errorf("job %s failed: %s", done.ID, done.Error)
	}

	color.Green("✓ Extracted %d characters from %s", len([]rune(done.Document.Content)), done.Source)
	if ingestOut != "" {
		if err := os.WriteFile(ingestOut, []byte(done.Document.Content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %v", ingestOut, err)
		}
		color.Green("✓ Wrote %s", ingestOut)
		return nil
	}
	fmt.Println(done.Document.Content)
	return nil
}

// jobClient talks to the ingest endpoints of a running server.
type jobClient struct {
	base string
	http *http.Client
}

func (c *jobClient) submitURL(ctx context.Context, url string) (models.IngestJob, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return models.IngestJob{}, err
	}
	return c.do(ctx, http.MethodPost, "/api/ingest", "application/json", bytes.NewReader(body))
}

func (c *jobClient) submitFile(ctx context.Context, path string) (models.IngestJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.IngestJob{}, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return models.IngestJob{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return models.IngestJob{}, err
	}
	if err := mw.Close(); err != nil {
		return models.IngestJob{}, err
	}
	return c.do(ctx, http.MethodPost, "/api/ingest/upload", mw.FormDataContentType(), &body)
}

func (c *jobClient) job(ctx context.Context, id string) (models.IngestJob, error) {
	return c.do(ctx, http.MethodGet, "/api/ingest/"+id, "", nil)
}

func (c *jobClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (models.IngestJob, error) {
	var job models.IngestJob

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return job, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return job, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return job, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return job, fmt.Errorf("failed to decode job: %v", err)
	}
	return job, nil
}
