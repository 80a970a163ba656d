package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxChars  = 5000
	DefaultUserAgent = "Mozilla/5.0 (compatible; HN-Insight/1.0)"

	maxBodyBytes = 5 << 20
)

// noise is removed before any text is read.
const noise = "script, style, noscript, nav, header, footer, svg, img, picture, video, audio, form, iframe"

type Config struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

// Scraper extracts a bounded plain-text excerpt from article pages.
type Scraper struct {
	httpClient *http.Client
	maxChars   int
	userAgent  string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Scraper{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxChars:  cfg.MaxChars,
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "scraper"),
	}
}

// Scrape is best effort: any failure is logged and yields "".
func (s *Scraper) Scrape(ctx context.Context, url string) string {
	if strings.TrimSpace(url) == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Warn("invalid scrape url", "url", url, "error", err)
		return ""
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("scrape request failed", "url", url, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("scrape returned non-success status", "url", url, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.logger.Warn("failed to parse page", "url", url, "error", err)
		return ""
	}

	return truncate(ExtractText(doc), s.maxChars)
}

// ExtractText prefers <article>, then <main>, then <body>, then the whole
// document, and collapses whitespace.
func ExtractText(doc *goquery.Document) string {
	doc.Find(noise).Remove()

	for _, sel := range []string{"article", "main", "body"} {
		if text := collapse(doc.Find(sel).Text()); text != "" {
			return text
		}
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n characters (runes, not bytes).
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
