package brand

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/crafted/backend/internal/models"
)

// maxAssets caps how many ranked assets a profile stores.
const maxAssets = 8

// maxPaletteColors caps the stored palette.
const maxPaletteColors = 8

// BrandStore is the repository slice the scraper needs.
type BrandStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.BrandProfile, error)
	SetResult(ctx context.Context, id uuid.UUID, name string, palette, assets []string, status string) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Scraper fetches a brand profile's source page through the SSRF-safe
// client and stores the ranked assets and palette.
type Scraper struct {
	Brands   BrandStore
	Timeout  time.Duration
	MaxBytes int64
	Logger   *slog.Logger

	client *http.Client
}

func NewScraper(guard *Guard, brands BrandStore, timeout time.Duration, maxBytes int64, logger *slog.Logger) *Scraper {
	return &Scraper{
		Brands:   brands,
		Timeout:  timeout,
		MaxBytes: maxBytes,
		Logger:   logger,
		client:   guard.SafeClient(timeout),
	}
}

// Scrape runs one scrape attempt. A fetch or parse failure marks the
// profile failed and also returns the error so the job queue can retry; a
// later success overwrites the failed status.
func (s *Scraper) Scrape(ctx context.Context, profileID uuid.UUID) error {
	profile, err := s.Brands.GetByID(ctx, profileID)
	if err != nil {
		return fmt.Errorf("load brand profile: %w", err)
	}

	doc, base, err := s.fetch(ctx, profile.SourceURL)
	if err != nil {
		s.Logger.Warn("brand scrape failed", "profile_id", profileID, "url", profile.SourceURL, "error", err)
		if markErr := s.Brands.SetStatus(ctx, profileID, models.BrandStatusFailed); markErr != nil {
			s.Logger.Error("mark brand failed", "profile_id", profileID, "error", markErr)
		}
		return err
	}

	name := ExtractSiteName(doc)
	assets := ExtractAssets(base, doc, maxAssets)
	palette := ExtractPalette(doc, maxPaletteColors)

	if err := s.Brands.SetResult(ctx, profileID, name, palette, assets, models.BrandStatusReady); err != nil {
		return fmt.Errorf("store scrape result: %w", err)
	}
	s.Logger.Info("brand scraped", "profile_id", profileID, "assets", len(assets), "palette", len(palette))
	return nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*html.Node, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", "CraftedBot/1.0 (+https://crafted.dev/bot)")
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, s.MaxBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	// Redirects may have moved us; resolve relative assets against the
	// final URL.
	base := resp.Request.URL
	return doc, base, nil
}
