package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/request"
	"github.com/blnkfinance/payrec/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultPerPage  = 50
	defaultMaxPages = 20
	timeLayout      = "2006-01-02T15:04:05-0700"
)

type Config struct {
	BaseURL     string
	StoreID     string
	AccessToken string
	UserAgent   string
	// RequestDelay is the minimum gap between two calls to the store.
	RequestDelay time.Duration
}

// HTTPClient calls the store REST API. Calls are spaced by RequestDelay;
// callers block until their slot comes up.
type HTTPClient struct {
	cfg     Config
	limiter *time.Ticker
}

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" || cfg.StoreID == "" {
		return nil, errors.New("platform base url and store id are required")
	}
	if cfg.AccessToken == "" {
		return nil, errors.New("platform access token is empty")
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 500 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{cfg: cfg, limiter: time.NewTicker(cfg.RequestDelay)}, nil
}

func (c *HTTPClient) Close() {
	c.limiter.Stop()
}

func (c *HTTPClient) wait(ctx context.Context) error {
	select {
	case <-c.limiter.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s%s", c.cfg.BaseURL, c.cfg.StoreID, path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authentication", "bearer "+c.cfg.AccessToken)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	_, err = request.Call(req, out)
	if err == nil {
		return nil
	}

	var statusErr *request.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return apierror.NewAPIError(apierror.ErrNotFound, "resource not found on platform", nil)
	}
	logrus.WithFields(logrus.Fields{"path": path, "error": err}).Warn("platform request failed")
	return apierror.NewAPIError(apierror.ErrUpstream, fmt.Sprintf("platform request %s failed: %v", path, err), nil)
}

func (c *HTTPClient) FetchOrder(ctx context.Context, remoteID string) (*RemoteOrder, error) {
	var raw remoteOrder
	if err := c.get(ctx, "/orders/"+url.PathEscape(remoteID), nil, &raw); err != nil {
		return nil, err
	}
	order := raw.toRemoteOrder(c.cfg.StoreID)
	return &order, nil
}

func (c *HTTPClient) SearchOrders(ctx context.Context, params SearchParams) ([]RemoteOrder, error) {
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	query := url.Values{}
	if params.Query != "" {
		query.Set("q", params.Query)
	}
	if !params.UpdatedSince.IsZero() {
		query.Set("updated_at_min", params.UpdatedSince.UTC().Format(time.RFC3339))
	}
	query.Set("per_page", fmt.Sprint(perPage))

	var out []RemoteOrder
	for page := 1; page <= maxPages; page++ {
		query.Set("page", fmt.Sprint(page))

		var raw []remoteOrder
		err := c.get(ctx, "/orders", query, &raw)
		if apierror.Is(err, apierror.ErrNotFound) {
			// the store answers 404 past the last page
			break
		}
		if err != nil {
			return nil, err
		}
		for _, r := range raw {
			out = append(out, r.toRemoteOrder(c.cfg.StoreID))
		}
		if len(raw) < perPage {
			break
		}
	}
	return out, nil
}

type remoteCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type remoteProduct struct {
	ProductID json.Number     `json:"product_id"`
	VariantID json.Number     `json:"variant_id"`
	Name      string          `json:"name"`
	Quantity  json.Number     `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type remoteOrder struct {
	ID        json.Number     `json:"id"`
	Number    json.Number     `json:"number"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Customer  remoteCustomer  `json:"customer"`
	Products  []remoteProduct `json:"products"`
	UpdatedAt string          `json:"updated_at"`
}

func (r remoteOrder) toRemoteOrder(storeID string) RemoteOrder {
	number := r.Number.String()
	items := make([]model.OrderLineItem, 0, len(r.Products))
	for _, p := range r.Products {
		qty, _ := p.Quantity.Int64()
		items = append(items, model.OrderLineItem{
			OrderNumber: number,
			ProductID:   p.ProductID.String(),
			VariantID:   p.VariantID.String(),
			Name:        p.Name,
			Quantity:    int(qty),
			UnitPrice:   p.Price,
		})
	}

	updated, err := time.Parse(timeLayout, r.UpdatedAt)
	if err != nil {
		updated, _ = time.Parse(time.RFC3339, r.UpdatedAt)
	}

	return RemoteOrder{
		ID:        r.ID.String(),
		Number:    number,
		StoreID:   storeID,
		Status:    r.Status,
		Total:     r.Total,
		Customer:  Customer(r.Customer),
		LineItems: items,
		UpdatedAt: updated,
	}
}
