package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/knoguchi/dinerag/internal/catalog"
)

const (
	// DefaultSourceURL is the datasets-server rows endpoint for the Zomato dataset.
	DefaultSourceURL = "https://datasets-server.huggingface.co/rows?dataset=ManikaSaini%2Fzomato-restaurant-recommendation&config=default&split=train"

	// DefaultLimit is the number of rows fetched when no limit is configured.
	DefaultLimit = 1000

	// DefaultPageSize is the datasets-server maximum page length.
	DefaultPageSize = 100

	// DefaultRatePerSecond caps page requests against the datasets-server.
	DefaultRatePerSecond = 2.0

	// SourceCache and SourceRemote identify where a load came from.
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// ErrNoData is returned when there is no cache file and downloading is disabled
// or yielded nothing.
var ErrNoData = errors.New("no catalog data available")

// Config holds configuration for the dataset loader.
type Config struct {
	// CachePath is the processed JSON file read before, and written after, a download.
	CachePath string

	// SourceURL is the rows endpoint, without offset and length.
	SourceURL string

	// Limit caps the number of rows downloaded.
	Limit int

	// PageSize is the number of rows requested per page.
	PageSize int

	// Download enables fetching from SourceURL when the cache is missing.
	Download bool

	// RatePerSecond limits page requests. Zero uses the default.
	RatePerSecond float64

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Result holds the outcome of a load.
type Result struct {
	Records []catalog.RawRecord

	// Source is SourceCache or SourceRemote.
	Source string

	// Pages is the number of pages fetched; zero for cache loads.
	Pages int

	// ContentHash is the SHA-256 of the cache file contents.
	ContentHash string

	Duration time.Duration
}

// Loader produces raw catalog records from the local cache or the dataset source.
type Loader struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewLoader creates a loader, applying defaults for unset fields.
func NewLoader(cfg Config) *Loader {
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
	}
}

// Load returns records from the cache file if it exists, otherwise downloads
// them page by page and writes the cache. A failing page ends the download;
// rows fetched before it are kept.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	start := time.Now()

	if l.cfg.CachePath != "" {
		records, hash, err := ReadCache(l.cfg.CachePath)
		switch {
		case err == nil:
			l.logger.Info("loaded catalog from cache", "path", l.cfg.CachePath, "records", len(records))
			return &Result{
				Records:     records,
				Source:      SourceCache,
				ContentHash: hash,
				Duration:    time.Since(start),
			}, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if !l.cfg.Download {
		return nil, fmt.Errorf("%w: cache %q not found and download disabled", ErrNoData, l.cfg.CachePath)
	}

	l.logger.Info("downloading catalog", "source", l.cfg.SourceURL, "limit", l.cfg.Limit)

	records, pages := l.download(ctx)
	if len(records) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("failed to download catalog: %w", err)
		}
		return nil, fmt.Errorf("%w: download returned no rows", ErrNoData)
	}

	result := &Result{
		Records: records,
		Source:  SourceRemote,
		Pages:   pages,
	}

	if l.cfg.CachePath != "" {
		hash, err := WriteCache(l.cfg.CachePath, records)
		if err != nil {
			l.logger.Warn("failed to write catalog cache", "path", l.cfg.CachePath, "error", err)
		} else {
			result.ContentHash = hash
			l.logger.Info("saved catalog cache", "path", l.cfg.CachePath, "records", len(records))
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int `json:"row_idx"`
		Row    Row `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

func (l *Loader) download(ctx context.Context) ([]catalog.RawRecord, int) {
	records := make([]catalog.RawRecord, 0, l.cfg.Limit)
	pages := 0

	for offset := 0; offset < l.cfg.Limit; offset += l.cfg.PageSize {
		length := min(l.cfg.PageSize, l.cfg.Limit-offset)

		page, err := l.fetchPage(ctx, offset, length)
		if err != nil {
			l.logger.Error("failed to fetch catalog page", "offset", offset, "error", err)
			break
		}
		pages++

		for _, item := range page.Rows {
			records = append(records, Normalize(item.Row))
		}
		if len(page.Rows) < length {
			break
		}
	}
	return records, pages
}

func (l *Loader) fetchPage(ctx context.Context, offset, length int) (*rowsResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(l.cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch failed (status %d): %s", resp.StatusCode, string(body))
	}

	var page rowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}

// ReadCache reads a processed cache file and returns its records and content hash.
func ReadCache(path string) ([]catalog.RawRecord, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	var records []catalog.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, "", fmt.Errorf("failed to parse cache %q: %w", path, err)
	}
	return records, hashContent(data), nil
}

// WriteCache writes records to path atomically and returns the content hash.
func WriteCache(path string, records []catalog.RawRecord) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move cache into place: %w", err)
	}
	return hashContent(data), nil
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
