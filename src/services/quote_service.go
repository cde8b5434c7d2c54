// backend/src/services/quote_service.go
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
	"go.uber.org/ratelimit"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultQuoteBaseURL = "https://query1.finance.yahoo.com"
	quoteUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	// historyFreshness is how long stored closes are served before the API is asked again.
	historyFreshness = 12 * time.Hour
)

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string          `json:"currency"`
				Symbol             string          `json:"symbol"`
				RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []decimal.NullDecimal `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// QuoteServiceOptions configures a quote client. Zero values fall back to defaults.
type QuoteServiceOptions struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	HistoryRange      string
	// WarmupURLs are visited before the crumb request to collect session cookies.
	WarmupURLs []string
}

type quoteServiceImpl struct {
	db           *sql.DB
	client       *resty.Client
	limiter      ratelimit.Limiter
	quoteCache   *cache.Cache
	historyRange string
	warmupURLs   []string

	mu            sync.Mutex
	isInitialized bool
	crumb         string
}

// NewQuoteService builds the Yahoo Finance client from the global configuration.
func NewQuoteService(db *sql.DB, quoteCache *cache.Cache) QuoteService {
	opts := QuoteServiceOptions{BaseURL: defaultQuoteBaseURL}
	if config.Cfg != nil {
		opts.BaseURL = config.Cfg.QuoteAPIBaseURL
		opts.Timeout = config.Cfg.QuoteAPITimeout
		opts.RequestsPerSecond = config.Cfg.QuoteRequestsPerSec
		opts.HistoryRange = config.Cfg.PriceHistoryRange
	}
	if strings.TrimRight(opts.BaseURL, "/") == defaultQuoteBaseURL {
		opts.WarmupURLs = []string{"https://fc.yahoo.com", "https://finance.yahoo.com"}
	}
	return NewQuoteServiceWithOptions(db, quoteCache, opts)
}

func NewQuoteServiceWithOptions(db *sql.DB, quoteCache *cache.Cache, opts QuoteServiceOptions) QuoteService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultQuoteBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 4
	}
	if opts.HistoryRange == "" {
		opts.HistoryRange = "2y"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", quoteUserAgent).
		SetHeader("Accept", "application/json")

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	} else {
		client.SetCookieJar(jar)
	}

	return &quoteServiceImpl{
		db:           db,
		client:       client,
		limiter:      ratelimit.New(opts.RequestsPerSecond),
		quoteCache:   quoteCache,
		historyRange: opts.HistoryRange,
		warmupURLs:   opts.WarmupURLs,
	}
}

func (s *quoteServiceImpl) initializeSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized && s.crumb != "" {
		return
	}

	log := logger.FromContext(ctx)
	log.Info("Initializing quote API session and fetching crumb...")
	for _, warmup := range s.warmupURLs {
		s.limiter.Take()
		if _, err := s.client.R().SetContext(ctx).Get(warmup); err != nil {
			log.Debug("Quote session warmup request failed", "url", warmup, "error", err)
		}
	}

	s.limiter.Take()
	resp, err := s.client.R().SetContext(ctx).Get("/v1/test/getcrumb")
	if err != nil {
		log.Error("Failed to fetch crumb", "error", err)
		return
	}
	if resp.StatusCode() != http.StatusOK {
		log.Warn("Failed to fetch crumb", "status", resp.Status())
		return
	}
	s.crumb = strings.TrimSpace(resp.String())
	s.isInitialized = true
	log.Info("Quote API session initialized")
}

func (s *quoteServiceImpl) ensureSession(ctx context.Context) string {
	s.mu.Lock()
	needsInit := !s.isInitialized || s.crumb == ""
	s.mu.Unlock()

	if needsInit {
		s.initializeSession(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crumb
}

func (s *quoteServiceImpl) resetSession() {
	s.mu.Lock()
	s.isInitialized = false
	s.crumb = ""
	s.mu.Unlock()
}

func (s *quoteServiceImpl) fetchChart(ctx context.Context, ticker string, params map[string]string) (*yahooChartResponse, error) {
	crumb := s.ensureSession(ctx)
	s.limiter.Take()

	req := s.client.R().SetContext(ctx).SetQueryParams(params)
	if crumb != "" {
		req.SetQueryParam("crumb", crumb)
	}
	resp, err := req.Get("/v8/finance/chart/" + url.PathEscape(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to call chart API: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		s.resetSession()
		return nil, fmt.Errorf("status 401 (Unauthorized) - crumb invalid")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("chart API returned non-OK status %d", resp.StatusCode())
	}

	var data yahooChartResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}
	if data.Chart.Error != nil {
		return nil, fmt.Errorf("chart API returned an error: %v", data.Chart.Error)
	}
	if len(data.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no chart result for %s", ErrQuoteUnavailable, ticker)
	}
	return &data, nil
}

// GetCurrentPrices returns one entry per requested ticker; tickers without a quote are UNAVAILABLE.
func (s *quoteServiceImpl) GetCurrentPrices(ctx context.Context, tickers []string) (map[string]QuoteInfo, error) {
	log := logger.FromContext(ctx)
	results := make(map[string]QuoteInfo, len(tickers))

	for _, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			continue
		}
		if _, done := results[ticker]; done {
			continue
		}
		cacheKey := fmt.Sprintf(ckQuote, ticker)
		if cached, found := s.quoteCache.Get(cacheKey); found {
			results[ticker] = cached.(QuoteInfo)
			continue
		}

		data, err := s.fetchChart(ctx, ticker, map[string]string{"interval": "1d", "range": "1d"})
		if err != nil {
			log.Warn("Could not get price for ticker from API", "ticker", ticker, "error", err)
			results[ticker] = QuoteInfo{Status: "UNAVAILABLE"}
			continue
		}
		meta := data.Chart.Result[0].Meta
		if meta.RegularMarketPrice.Sign() <= 0 {
			results[ticker] = QuoteInfo{Status: "UNAVAILABLE"}
			continue
		}
		info := QuoteInfo{Status: "OK", Price: meta.RegularMarketPrice, Currency: meta.Currency}
		s.quoteCache.Set(cacheKey, info, cache.DefaultExpiration)
		results[ticker] = info
	}
	return results, nil
}

// GetHistoricalPrices serves stored closes while they are fresh and refreshes them from the API otherwise.
// Stale stored data is returned when the API cannot be reached.
func (s *quoteServiceImpl) GetHistoricalPrices(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	log := logger.FromContext(ctx)
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	from := historyStart(s.historyRange, time.Now())

	lastFetch, err := model.GetLatestPriceFetch(s.db, ticker)
	if err != nil {
		log.Warn("Failed to read price fetch time", "ticker", ticker, "error", err)
	}
	if !lastFetch.IsZero() && time.Since(lastFetch) < historyFreshness {
		stored, err := model.GetDailyPrices(s.db, ticker, from)
		if err == nil && len(stored) > 0 {
			return stored, nil
		}
	}

	points, fetchErr := s.fetchHistory(ctx, ticker)
	if fetchErr != nil {
		stored, err := model.GetDailyPrices(s.db, ticker, from)
		if err == nil && len(stored) > 0 {
			log.Warn("Serving stored prices after history fetch failed", "ticker", ticker, "error", fetchErr)
			return stored, nil
		}
		return nil, fetchErr
	}
	if err := model.SaveDailyPrices(s.db, ticker, points); err != nil {
		log.Error("Failed to store daily prices", "ticker", ticker, "error", err)
	}
	return points, nil
}

func (s *quoteServiceImpl) fetchHistory(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	data, err := s.fetchChart(ctx, ticker, map[string]string{"interval": "1d", "range": s.historyRange})
	if err != nil {
		return nil, err
	}
	result := data.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote data for %s", ErrQuoteUnavailable, ticker)
	}
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return nil, fmt.Errorf("history data mismatch for %s: %d timestamps, %d closes", ticker, len(result.Timestamp), len(closes))
	}

	points := make([]models.PricePoint, 0, len(closes))
	seen := make(map[string]int, len(closes))
	for i, ts := range result.Timestamp {
		c := closes[i]
		if !c.Valid || c.Decimal.Sign() <= 0 {
			continue
		}
		date := time.Unix(ts, 0).UTC().Format(utils.ISODate)
		if idx, dup := seen[date]; dup {
			points[idx].Close = c.Decimal
			continue
		}
		seen[date] = len(points)
		points = append(points, models.PricePoint{Date: date, Close: c.Decimal})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty history for %s", ErrQuoteUnavailable, ticker)
	}
	return points, nil
}

// historyStart converts a range such as "2y", "6mo" or "30d" into the first date to keep.
func historyStart(historyRange string, now time.Time) string {
	var n int
	var unit string
	if _, err := fmt.Sscanf(historyRange, "%d%s", &n, &unit); err != nil || n <= 0 {
		return now.AddDate(-2, 0, 0).Format(utils.ISODate)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n).Format(utils.ISODate)
	case "mo":
		return now.AddDate(0, -n, 0).Format(utils.ISODate)
	default:
		return now.AddDate(-n, 0, 0).Format(utils.ISODate)
	}
}
