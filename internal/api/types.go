package api

import "encoding/json"

// Result is a decoded JSON response. Payload schemas are exchange specific
// and left to callers.
type Result map[string]any

// Success reports the "success" flag of the response.
func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// Rows returns the "rows" array of list responses.
func (r Result) Rows() []any {
	rows, _ := r["rows"].([]any)
	return rows
}

// SymbolsResponse from GET /v1/public/info
type SymbolsResponse struct {
	Success bool     `json:"success"`
	Rows    []Symbol `json:"rows"`
}

// SymbolResponse from GET /v1/public/info/{symbol}
type SymbolResponse struct {
	Success bool   `json:"success"`
	Info    Symbol `json:"info"`
}

// Symbol describes a tradable instrument.
type Symbol struct {
	Symbol      string      `json:"symbol"` // e.g. SPOT_BTC_USDT
	QuoteMin    json.Number `json:"quote_min"`
	QuoteMax    json.Number `json:"quote_max"`
	QuoteTick   json.Number `json:"quote_tick"`
	BaseMin     json.Number `json:"base_min"`
	BaseMax     json.Number `json:"base_max"`
	BaseTick    json.Number `json:"base_tick"`
	MinNotional json.Number `json:"min_notional"`
	PriceRange  json.Number `json:"price_range"`
	CreatedTime string      `json:"created_time"`
	UpdatedTime string      `json:"updated_time"`
}
