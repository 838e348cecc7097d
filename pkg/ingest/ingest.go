package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/pkg/extract"
	"github.com/xhad/hexauthor/pkg/poller"
	"github.com/xhad/hexauthor/pkg/processor"
	"github.com/xhad/hexauthor/pkg/scraper"
)

var (
	ErrInvalidSource = errors.New("invalid source")
	ErrUnsupported   = errors.New("unsupported file type")
	ErrTooLarge      = errors.New("upload too large")
	ErrJobNotFound   = errors.New("job not found")
	ErrNoContent     = errors.New("no readable content")
)

const DefaultMaxUploadBytes = 20 << 20

type ServiceConfig struct {
	// Scraper is the template for URL jobs. BaseURL is set per job.
	Scraper        scraper.ScraperConfig
	Processor      processor.ProcessorConfig
	MaxUploadBytes int64
	PollInterval   time.Duration
}

// Service runs extraction jobs in the background and keeps their results
// in memory.
type Service struct {
	config    ServiceConfig
	processor processor.Processor

	mu   sync.RWMutex
	jobs map[string]*models.IngestJob
	wg   sync.WaitGroup
}

func NewWithConfig(config ServiceConfig) *Service {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 250 * time.Millisecond
	}

	return &Service{
		config:    config,
		processor: processor.NewWithConfig(config.Processor),
		jobs:      make(map[string]*models.IngestJob),
	}
}

// SubmitURL starts scraping rawURL. The job outlives ctx's cancellation.
func (s *Service) SubmitURL(ctx context.Context, rawURL string) (models.IngestJob, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.IngestJob{}, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidSource, rawURL)
	}
	source := u.String()

	return s.start(ctx, source, func(ctx context.Context) (models.Document, error) {
		config := s.config.Scraper
		config.BaseURL = source
		if config.OnProgress == nil {
			config.OnProgress = func(page string) { log.Printf("scraping %s", page) }
		}
		sc, err := scraper.NewWithConfig(config)
		if err != nil {
			return models.Document{}, err
		}

		pages, err := sc.ScrapeContext(ctx, source)
		if err != nil {
			return models.Document{}, fmt.Errorf("failed to scrape %s: %w", source, err)
		}
		// pages left too short after cleanup are dropped before merging
		pages, err = s.processor.Process(pages)
		if err != nil {
			return models.Document{}, err
		}
		return merge(source, pages)
	}), nil
}

// SubmitFile reads the upload and starts extracting it.
func (s *Service) SubmitFile(ctx context.Context, filename string, r io.Reader) (models.IngestJob, error) {
	if !extract.IsSupported(filename) {
		return models.IngestJob{}, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxUploadBytes+1))
	if err != nil {
		return models.IngestJob{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		return models.IngestJob{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.config.MaxUploadBytes)
	}

	return s.start(ctx, filename, func(ctx context.Context) (models.Document, error) {
		return extract.File(bytes.NewReader(data), filename)
	}), nil
}

func (s *Service) start(ctx context.Context, source string, run func(ctx context.Context) (models.Document, error)) models.IngestJob {
	now := time.Now().UTC()
	job := &models.IngestJob{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    models.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.update(job.ID, func(j *models.IngestJob) { j.Status = models.JobRunning })

		doc, err := run(ctx)
		if err == nil {
			doc, err = s.canonicalize(source, doc)
		}

		s.update(job.ID, func(j *models.IngestJob) {
			if err != nil {
				log.Printf("ingest job %s failed: %v", j.ID, err)
				j.Status = models.JobFailed
				j.Error = err.Error()
				return
			}
			j.Status = models.JobDone
			j.Document = &doc
		})
	}()

	return snapshot
}

func (s *Service) canonicalize(source string, doc models.Document) (models.Document, error) {
	if doc.URL == "" {
		doc.URL = source
	}
	doc = s.processor.Canonicalize(doc)
	if doc.Content == "" || utf8.RuneCountInString(doc.Content) < s.config.Processor.MinContentLength {
		return models.Document{}, fmt.Errorf("%w in %s", ErrNoContent, source)
	}
	return doc, nil
}

func (s *Service) update(id string, fn func(j *models.IngestJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = time.Now().UTC()
	}
}

// Job returns a copy of the job with the given id.
func (s *Service) Job(id string) (models.IngestJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.IngestJob{}, false
	}
	return *j, true
}

// Await polls the job until it finishes or ctx ends.
func (s *Service) Await(ctx context.Context, id string) (models.IngestJob, error) {
	return poller.Poll(ctx, func(ctx context.Context) (models.IngestJob, bool, error) {
		job, ok := s.Job(id)
		if !ok {
			return job, false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return job, job.Finished(), nil
	}, poller.Config{Interval: s.config.PollInterval})
}

// Wait blocks until every submitted job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// merge joins crawled pages into one document in crawl order.
func merge(source string, pages []models.Document) (models.Document, error) {
	if len(pages) == 0 {
		return models.Document{}, fmt.Errorf("%w at %s", ErrNoContent, source)
	}
	if len(pages) == 1 {
		return pages[0], nil
	}

	contents := make([]string, 0, len(pages))
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		contents = append(contents, p.Content)
		urls = append(urls, p.URL)
	}

	return models.Document{
		URL:     source,
		Title:   pages[0].Title,
		Content: strings.Join(contents, "\n\n"),
		Metadata: map[string]interface{}{
			"pages": urls,
		},
	}, nil
}
