// Package cart fetches orders and product details from the commerce store's
// REST admin API.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/datewindow"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config holds store API configuration
type Config struct {
	BaseURL    string
	RestAdmin  string
	SourceName string
}

// Client calls the store's REST admin API
type Client struct {
	http   *httpclient.Client
	cfg    Config
	logger ectologger.Logger
}

// NewClient creates a new store API client
func NewClient(http *httpclient.Client, cfg Config, logger ectologger.Logger) *Client {
	return &Client{
		http:   http,
		cfg:    cfg,
		logger: logger,
	}
}

// SourceName returns the store's source name, used to scope CRM uniqueids.
func (c *Client) SourceName() string {
	return c.cfg.SourceName
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"X-Oc-Restadmin-Id": c.cfg.RestAdmin,
		// the store rejects requests without a user agent (406 from mod_security)
		"User-Agent": "PostmanRuntime/7.20.1",
		"Accept":     "application/json",
	}
}

// Order fetches a single order by id.
func (c *Client) Order(ctx context.Context, orderID string) result.Result[Order] {
	ctx, span := tracing.StartSpan(ctx, "Cart.Order")
	defer span.End()

	url := fmt.Sprintf("%s/orders/%s", c.cfg.BaseURL, orderID)

	resp, err := c.http.Get(ctx, url, nil, c.headers())
	if err != nil {
		return result.Fail[Order](result.KindSourceTransport, http.StatusBadGateway,
			fmt.Sprintf("Failed to reach %s: %v", c.cfg.SourceName, err))
	}

	var env envelope
	if err := resp.DecodeJSON(&env); err != nil {
		return result.Fail[Order](result.KindSourceTransport, result.NormalizeStatus(resp.StatusCode),
			fmt.Sprintf("Unexpected response from %s: %v", c.cfg.SourceName, err))
	}

	if len(env.Error) > 0 {
		message := fmt.Sprintf("Order could not be found in %s: %s", c.cfg.SourceName, env.Error.First())
		return result.Fail[Order](result.KindSourceNotFound, result.NormalizeStatus(resp.StatusCode), message)
	}

	var order Order
	if err := decode(env.Data, &order); err != nil {
		return result.Fail[Order](result.KindSourceTransport, result.NormalizeStatus(resp.StatusCode),
			fmt.Sprintf("Unexpected order payload from %s: %v", c.cfg.SourceName, err))
	}

	message := fmt.Sprintf("Found order '%s' for customer '%s' in %s.",
		orderID, order.CustomerName(), c.cfg.SourceName)
	return result.Ok(order, message)
}

// OrdersAdded fetches every order added between start and end, inclusive. The
// store API treats "added to" as exclusive, so one day is added to end.
func (c *Client) OrdersAdded(ctx context.Context, start, end time.Time) result.Result[[]Order] {
	ctx, span := tracing.StartSpan(ctx, "Cart.OrdersAdded")
	defer span.End()

	from := start.Format(datewindow.DateFormat)
	to := datewindow.NextDay(end).Format(datewindow.DateFormat)
	url := fmt.Sprintf("%s/orders/details/added_from/%s/added_to/%s", c.cfg.BaseURL, from, to)

	resp, err := c.http.Get(ctx, url, nil, c.headers())
	if err != nil {
		return result.Fail[[]Order](result.KindSourceTransport, http.StatusBadGateway,
			fmt.Sprintf("Failed to reach %s: %v", c.cfg.SourceName, err))
	}

	var env envelope
	if err := resp.DecodeJSON(&env); err != nil {
		return result.Fail[[]Order](result.KindSourceTransport, result.NormalizeStatus(resp.StatusCode),
			fmt.Sprintf("Unexpected response from %s: %v", c.cfg.SourceName, err))
	}

	if len(env.Error) > 0 {
		message := fmt.Sprintf("Failed to list orders in %s: %s", c.cfg.SourceName, env.Error.First())
		return result.Fail[[]Order](result.KindSourceTransport, result.NormalizeStatus(resp.StatusCode), message)
	}

	var orders []Order
	if err := decode(env.Data, &orders); err != nil {
		return result.Fail[[]Order](result.KindSourceTransport, result.NormalizeStatus(resp.StatusCode),
			fmt.Sprintf("Unexpected order payload from %s: %v", c.cfg.SourceName, err))
	}

	message := fmt.Sprintf("Orders from %s to %s found in %s.", from, to, c.cfg.SourceName)
	return result.Ok(orders, message)
}

// Manufacturers fetches the manufacturer of each product and returns the
// distinct names sorted. Products that fail to resolve are skipped.
func (c *Client) Manufacturers(ctx context.Context, products []Product) []string {
	ctx, span := tracing.StartSpan(ctx, "Cart.Manufacturers")
	defer span.End()

	seen := make(map[string]struct{})
	for _, product := range products {
		url := fmt.Sprintf("%s/products/%s", c.cfg.BaseURL, product.ProductID)

		resp, err := c.http.Get(ctx, url, nil, c.headers())
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).Warnf("Failed to fetch product %s", product.ProductID)
			continue
		}

		var env envelope
		if err := resp.DecodeJSON(&env); err != nil || len(env.Error) > 0 {
			continue
		}

		var data productData
		if err := decode(env.Data, &data); err != nil {
			continue
		}
		if data.Manufacturer != "" {
			seen[data.Manufacturer] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty data payload")
	}
	return json.Unmarshal(data, v)
}
