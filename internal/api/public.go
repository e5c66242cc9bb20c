package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// GetAvailableSymbols lists every tradable symbol.
func (c *Client) GetAvailableSymbols(ctx context.Context) (*SymbolsResponse, error) {
	var resp SymbolsResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "public/info"}, &resp); err != nil {
		return nil, fmt.Errorf("get available symbols: %w", err)
	}
	return &resp, nil
}

// GetExchangeInfo returns the trading rules of one symbol.
func (c *Client) GetExchangeInfo(ctx context.Context, symbol string) (*SymbolResponse, error) {
	var resp SymbolResponse
	if err := c.call(ctx, request{method: http.MethodGet, path: "public/info/" + symbol}, &resp); err != nil {
		return nil, fmt.Errorf("get exchange info %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetMarketTrades returns recent public trades. limit <= 0 uses the server default.
func (c *Client) GetMarketTrades(ctx context.Context, symbol string, limit int) (Result, error) {
	params := map[string]string{"symbol": symbol}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var resp Result
	if err := c.call(ctx, request{method: http.MethodGet, path: "public/market_trades", params: params}, &resp); err != nil {
		return nil, fmt.Errorf("get market trades %s: %w", symbol, err)
	}
	return resp, nil
}

// GetAvailableTokens lists every token known to the exchange.
func (c *Client) GetAvailableTokens(ctx context.Context) (Result, error) {
	var resp Result
	if err := c.call(ctx, request{method: http.MethodGet, path: "public/token"}, &resp); err != nil {
		return nil, fmt.Errorf("get available tokens: %w", err)
	}
	return resp, nil
}
