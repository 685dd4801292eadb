package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
)

const defaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Converter implements port.CurrencyConverter against the exchangerate-api
// service. Rate tables are cached per base currency for cacheTTL, so at most
// one upstream request per currency per hour.
type Converter struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]*cachedRates
}

type cachedRates struct {
	rates     map[string]float64
	fetchedAt time.Time
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Config holds converter settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// NewConverter creates a new currency converter.
func NewConverter(cfg Config, logger *zap.Logger) *Converter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Converter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
		cache:      make(map[string]*cachedRates),
	}
}

// Convert converts amount from one currency to another using the latest
// rates published for the source currency. Same-currency conversions never
// hit the network.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	rates, err := c.ratesFor(ctx, from)
	if err != nil {
		return 0, err
	}

	rate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("no rate from %s to %s", from, to)
	}
	return amount * rate, nil
}

// ratesFor returns the rate table for one base currency, fetching it when the
// cached copy is missing or stale.
func (c *Converter) ratesFor(ctx context.Context, base string) (map[string]float64, error) {
	c.mu.Lock()
	cached, ok := c.cache[base]
	if ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		rates := cached.rates
		c.mu.Unlock()
		return rates, nil
	}
	c.mu.Unlock()

	rates, err := c.fetch(ctx, base)
	if err != nil {
		// A stale table beats a failed conversion.
		if cached != nil {
			c.logger.Warn("Rate fetch failed, serving stale rates",
				zap.String("base", base),
				zap.Error(err))
			return cached.rates, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.cache[base] = &cachedRates{rates: rates, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rates, nil
}

func (c *Converter) fetch(ctx context.Context, base string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate service returned %d for %s", resp.StatusCode, base)
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate service returned no rates for %s", base)
	}

	c.logger.Debug("Fetched exchange rates",
		zap.String("base", base),
		zap.Int("currencies", len(payload.Rates)))

	return payload.Rates, nil
}

// Verify interface compliance
var _ port.CurrencyConverter = (*Converter)(nil)
