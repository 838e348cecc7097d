package scraper

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
	assert.Equal(t, 50, s.config.MaxPages)

	_, err = NewWithConfig(ScraperConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestShouldProcessURL(t *testing.T) {
	config := ScraperConfig{
		BaseURL:           "https://example.com",
		IgnorePatterns:    []string{"/ignore/", "private"},
		AllowedExtensions: []string{".html", "/"},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/ignore/page.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/file.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := s.shouldProcessURL(tt.url)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Capabilities</title><style>body{}</style></head>
				<body>
					<nav><a href="/team.html">Team</a></nav>
					<main>
						<h1>Our   Capabilities</h1>
						<p>We build <b>data</b> platforms.</p>
						<ul><li>Cloud migration</li><li>Analytics</li></ul>
						<script>var x = 1;</script>
						<a href="/team.html#top">More</a>
					</main>
				</body>
			</html>
		`))
	})
	mux.HandleFunc("/team.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Team</title></head><body><p>Twelve engineers.</p></body></html>`))
	})
	return httptest.NewServer(mux)
}

func TestScrapeWithMockServer(t *testing.T) {
	server := newSite(t)
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  0,
		RateLimit: 100,
	})
	require.NoError(t, err)

	docs, err := s.Scrape(server.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, server.URL, doc.URL)
	assert.Equal(t, "Capabilities", doc.Title)
	assert.Equal(t, "Our Capabilities\n\nWe build data platforms.\n\nCloud migration\n\nAnalytics", doc.Content)
	assert.NotContains(t, doc.Content, "var x")
}

func TestScrapeFollowsLinks(t *testing.T) {
	server := newSite(t)
	defer server.Close()

	var visited []string
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:    server.URL,
		MaxDepth:   1,
		RateLimit:  100,
		OnProgress: func(url string) { visited = append(visited, url) },
	})
	require.NoError(t, err)

	docs, err := s.Scrape(server.URL)
	require.NoError(t, err)
	require.Len(t, docs, 2, "the fragment link resolves to the already visited team page")
	assert.Equal(t, "Twelve engineers.", docs[1].Content)
	assert.Len(t, visited, 2)
}

func TestScrapeStatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)

	_, err = s.Scrape(server.URL)
	assert.Error(t, err)
}
