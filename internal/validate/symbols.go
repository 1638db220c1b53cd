package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	appconfig "bookflow/config"
	"bookflow/logger"
)

// Validator checks configured symbols against each venue's REST inventory
// before any WebSocket is opened.
type Validator struct {
	config  *appconfig.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// New creates a validator using the configured rate limits.
func New(cfg *appconfig.Config) *Validator {
	v := cfg.Validation
	return &Validator{
		config:  cfg,
		client:  &http.Client{Timeout: v.Timeout.Std()},
		limiter: rate.NewLimiter(rate.Limit(v.RequestsPerSecond), v.Burst),
		log:     logger.GetLogger(),
	}
}

// Symbols validates both configured symbols. The returned error message
// names the failing venue and lists a sample of its valid symbols.
func (v *Validator) Symbols(ctx context.Context) error {
	log := v.log.WithComponent("symbol_validator")

	if err := v.hlSymbol(ctx, v.config.Pair.HLSymbol); err != nil {
		return fmt.Errorf("hyperliquid: %w", err)
	}
	log.WithFields(logger.Fields{"symbol": v.config.Pair.HLSymbol}).Info("hyperliquid symbol validated")

	if err := v.pdxSymbol(ctx, v.config.Pair.PDXSymbol); err != nil {
		return fmt.Errorf("paradex: %w", err)
	}
	log.WithFields(logger.Fields{"market": v.config.Pair.PDXSymbol}).Info("paradex market validated")

	return nil
}

// hlSymbol queries the Hyperliquid meta endpoint, which returns the full
// perp universe.
func (v *Validator) hlSymbol(ctx context.Context, symbol string) error {
	if err := v.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(map[string]string{"type": "meta"})
	if err != nil {
		return fmt.Errorf("marshal meta request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.config.Feeds.Hyperliquid.RestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build meta request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("meta request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("meta request returned status %d", resp.StatusCode)
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return fmt.Errorf("decode meta response: %w", err)
	}

	known := make([]string, 0, len(meta.Universe))
	for _, u := range meta.Universe {
		known = append(known, u.Name)
	}
	return v.match(symbol, known)
}

// pdxSymbol queries the Paradex markets endpoint.
func (v *Validator) pdxSymbol(ctx context.Context, market string) error {
	if err := v.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	url := strings.TrimSuffix(v.config.Feeds.Paradex.RestURL, "/") + "/markets"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build markets request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("markets request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("markets request returned status %d", resp.StatusCode)
	}

	var markets struct {
		Results []struct {
			Symbol string `json:"symbol"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return fmt.Errorf("decode markets response: %w", err)
	}

	known := make([]string, 0, len(markets.Results))
	for _, m := range markets.Results {
		known = append(known, m.Symbol)
	}
	return v.match(market, known)
}

func (v *Validator) match(symbol string, known []string) error {
	for _, k := range known {
		if strings.EqualFold(k, symbol) {
			return nil
		}
	}
	sample := known
	if len(sample) > v.config.Validation.Sample {
		sample = sample[:v.config.Validation.Sample]
	}
	return fmt.Errorf("symbol %q not found; available symbols include: %s",
		symbol, strings.Join(sample, ", "))
}
