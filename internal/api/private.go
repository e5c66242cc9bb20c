package api

import (
	"context"
	"fmt"
	"net/http"
)

// SendOrder places an order. params carry the exchange order fields
// (symbol, order_type, side, order_price, order_quantity, ...).
func (c *Client) SendOrder(ctx context.Context, params map[string]string) (Result, error) {
	return c.signed(ctx, http.MethodPost, "", "order", params, "send order")
}

// CancelOrder cancels one order by order_id and symbol.
func (c *Client) CancelOrder(ctx context.Context, params map[string]string) (Result, error) {
	return c.signed(ctx, http.MethodDelete, "", "order", params, "cancel order")
}

// CancelOrders cancels every open order of a symbol.
func (c *Client) CancelOrders(ctx context.Context, params map[string]string) (Result, error) {
	return c.signed(ctx, http.MethodDelete, "", "orders", params, "cancel orders")
}

// CancelOrderByClientOrderID cancels one order by client_order_id and symbol.
func (c *Client) CancelOrderByClientOrderID(ctx context.Context, params map[string]string) (Result, error) {
	return c.signed(ctx, http.MethodDelete, "", "client/order", params, "cancel client order")
}

// GetOrder fetches an order by exchange id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (Result, error) {
	return c.signed(ctx, http.MethodGet, "", "order/"+orderID, nil, "get order")
}

// GetOrderByClientOrderID fetches an order by client order id.
func (c *Client) GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (Result, error) {
	return c.signed(ctx, http.MethodGet, "", "client/order/"+clientOrderID, nil, "get client order")
}

// GetOrders lists orders matching params (symbol, side, status, ...).
func (c *Client) GetOrders(ctx context.Context, params map[string]string) (Result, error) {
	return c.signed(ctx, http.MethodGet, "", "orders", params, "get orders")
}

// GetCurrentHolding returns balances (v2 endpoint).
func (c *Client) GetCurrentHolding(ctx context.Context, params map[string]string) (Result, error) {
	return c.signed(ctx, http.MethodGet, "v2", "client/holding", params, "get current holding")
}

// GetAccountInfo returns the account configuration.
func (c *Client) GetAccountInfo(ctx context.Context) (Result, error) {
	return c.signed(ctx, http.MethodGet, "", "client/info", nil, "get account info")
}

func (c *Client) signed(ctx context.Context, method, version, path string, params map[string]string, op string) (Result, error) {
	var resp Result
	r := request{
		method:  method,
		version: version,
		path:    path,
		params:  params,
		signed:  true,
	}
	if err := c.call(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}
