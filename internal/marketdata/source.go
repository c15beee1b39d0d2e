// Package marketdata provides candle sourcing: REST history fetchers per
// exchange and a websocket stream collector for closed candles.
package marketdata

import (
	"context"
	"fmt"

	"tradecore/internal/model"
)

// Source fetches historical candles from an exchange REST API.
//
// Implementations must return candles in ascending timestamp order with
// every candle fully closed; partially formed buckets are the caller's
// problem to exclude via the period clock.
type Source interface {
	// Exchange returns the exchange identifier, e.g. "binance".
	Exchange() string

	// Fetch returns up to limit most recent closed candles, ascending.
	Fetch(ctx context.Context, symbol, period string, limit int) (model.Series, error)

	// FetchSince returns candles with TS >= sinceTS, ascending.
	FetchSince(ctx context.Context, symbol, period string, sinceTS int64) (model.Series, error)
}

// NewSource returns the REST source for the given exchange identifier.
func NewSource(exchange, baseURL string) (Source, error) {
	switch exchange {
	case "binance", "":
		return NewBinance(baseURL), nil
	case "okx":
		return NewOKX(baseURL), nil
	default:
		return nil, fmt.Errorf("marketdata: unknown exchange %q", exchange)
	}
}
