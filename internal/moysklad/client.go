// Package moysklad is a minimal client for the MoySklad JSON API,
// covering the assortment, product folder and counterparty endpoints
// the bot needs.
package moysklad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"warehouse_bot/internal/model"
)

// fetchRetryBase is the starting backoff for whole-fetch retries.
const fetchRetryBase = 5 * time.Second

// ungroupedLabel names products that sit outside any product folder.
const ungroupedLabel = "Ungrouped"

// maxBodySize caps how much of a response body gets read.
const maxBodySize = 10 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries the client settings.
type Config struct {
	BaseURL             string
	Token               string
	PageLimit           int
	PageDelay           time.Duration
	FetchAttempts       int
	ExpirationAttribute string
}

// Client talks to the MoySklad REST API.
type Client struct {
	client    HTTPClient
	cfg       Config
	log       *slog.Logger
	retryBase time.Duration
}

// New creates a Client with the given HTTP client and settings.
func New(client HTTPClient, cfg Config, log *slog.Logger) *Client {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 500
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 1
	}
	return &Client{client: client, cfg: cfg, log: log, retryBase: fetchRetryBase}
}

type entityRef struct {
	Meta struct {
		Href string `json:"href"`
	} `json:"meta"`
}

type attributeRow struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type assortmentRow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Stock          float64        `json:"stock"`
	MinimumBalance *float64       `json:"minimumBalance"`
	ProductFolder  *entityRef     `json:"productFolder"`
	Attributes     []attributeRow `json:"attributes"`
}

type assortmentPage struct {
	Rows []assortmentRow `json:"rows"`
}

type folderRow struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ProductFolder *entityRef `json:"productFolder"`
}

type folderPage struct {
	Rows []folderRow `json:"rows"`
}

type counterpartyRow struct {
	Name        string `json:"name"`
	CompanyType string `json:"companyType"`
}

type counterpartyPage struct {
	Rows []counterpartyRow `json:"rows"`
}

// FetchAllProducts loads the whole assortment with category paths and
// expiration attributes resolved. The entire fetch is retried as a unit,
// so a cycle never works from a half-loaded product list.
func (c *Client) FetchAllProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	backoff := retry.WithMaxRetries(uint64(c.cfg.FetchAttempts-1), retry.NewFibonacci(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		list, err := c.fetchAssortment(ctx)
		if err != nil {
			c.log.Warn("assortment fetch failed", "error", err)
			return retry.RetryableError(err)
		}
		products = list
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch assortment: %w", err)
	}
	return products, nil
}

func (c *Client) fetchAssortment(ctx context.Context) ([]model.Product, error) {
	folders, err := c.fetchFolders(ctx)
	if err != nil {
		return nil, err
	}

	var products []model.Product
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.cfg.PageLimit))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("filter", "type=product")

		var page assortmentPage
		if err := c.get(ctx, "/entity/assortment", query, &page); err != nil {
			return nil, fmt.Errorf("assortment page at %d: %w", offset, err)
		}

		for _, row := range page.Rows {
			p, err := c.buildProduct(row, folders)
			if err != nil {
				c.log.Warn("skipping malformed product", "error", err)
				continue
			}
			products = append(products, p)
		}

		if len(page.Rows) < c.cfg.PageLimit {
			break
		}
		offset += len(page.Rows)
		if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// folder holds one product folder with its parent link.
type folder struct {
	name     string
	parentID string
}

func (c *Client) fetchFolders(ctx context.Context) (map[string]folder, error) {
	folders := make(map[string]folder)
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.cfg.PageLimit))
		query.Set("offset", strconv.Itoa(offset))

		var page folderPage
		if err := c.get(ctx, "/entity/productfolder", query, &page); err != nil {
			return nil, fmt.Errorf("folder page at %d: %w", offset, err)
		}
		for _, row := range page.Rows {
			folders[row.ID] = folder{name: row.Name, parentID: refID(row.ProductFolder)}
		}
		if len(page.Rows) < c.cfg.PageLimit {
			break
		}
		offset += len(page.Rows)
	}
	return folders, nil
}

func (c *Client) buildProduct(row assortmentRow, folders map[string]folder) (model.Product, error) {
	if row.ID == "" {
		return model.Product{}, fmt.Errorf("product without id (name %q)", row.Name)
	}
	name := row.Name
	if name == "" {
		name = "(unnamed)"
	}
	p := model.Product{
		ID:         row.ID,
		Name:       name,
		Stock:      row.Stock,
		MinBalance: row.MinimumBalance,
		GroupPath:  groupPath(refID(row.ProductFolder), folders),
	}
	if t, ok := c.expirationValue(row.Attributes); ok {
		p.ExpirationDate = &t
	}
	return p, nil
}

// expirationValue pulls the configured expiration attribute from a
// product's attribute list. Missing attribute or an unparseable value
// means the product carries no expiration date.
func (c *Client) expirationValue(attrs []attributeRow) (time.Time, bool) {
	for _, a := range attrs {
		if a.Name != c.cfg.ExpirationAttribute {
			continue
		}
		s, ok := a.Value.(string)
		if !ok {
			return time.Time{}, false
		}
		return parseDate(s)
	}
	return time.Time{}, false
}

// groupPath walks the folder parent chain from the leaf up and joins
// the names root-first.
func groupPath(folderID string, folders map[string]folder) string {
	if folderID == "" {
		return ungroupedLabel
	}
	var names []string
	for id := folderID; id != ""; {
		f, ok := folders[id]
		if !ok {
			break
		}
		names = append(names, f.name)
		id = f.parentID
		if len(names) > 32 {
			// Broken parent links can form a cycle.
			break
		}
	}
	if len(names) == 0 {
		return ungroupedLabel
	}
	slices.Reverse(names)
	return strings.Join(names, " > ")
}

// CheckConnection probes the API with a one-row request.
func (c *Client) CheckConnection(ctx context.Context) bool {
	query := url.Values{}
	query.Set("limit", "1")
	var page counterpartyPage
	if err := c.get(ctx, "/entity/counterparty", query, &page); err != nil {
		c.log.Warn("api probe failed", "error", err)
		return false
	}
	return true
}

// EachCounterparty streams every non-archived counterparty through fn
// and returns how many were seen.
func (c *Client) EachCounterparty(ctx context.Context, fn func(model.Counterparty)) (int, error) {
	total := 0
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.cfg.PageLimit))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("filter", "archived=false")

		var page counterpartyPage
		if err := c.get(ctx, "/entity/counterparty", query, &page); err != nil {
			return total, fmt.Errorf("counterparty page at %d: %w", offset, err)
		}
		for _, row := range page.Rows {
			kind := row.CompanyType
			if kind == "" {
				kind = "legal"
			}
			fn(model.Counterparty{Name: row.Name, Kind: kind})
		}
		total += len(page.Rows)

		if len(page.Rows) < c.cfg.PageLimit {
			break
		}
		offset += len(page.Rows)
		if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
			return total, err
		}
	}
	return total, nil
}

// CreateCounterparty registers an individual counterparty named after
// the phone. Returns true when the counterparty exists afterwards; a 409
// means somebody already created it, which counts. Definitive API
// rejections return false without an error, transport failures return an
// error so the caller can retry.
func (c *Client) CreateCounterparty(ctx context.Context, phone string) (bool, error) {
	payload := map[string]any{
		"name":        phone,
		"phone":       phone,
		"companyType": "individual",
		"description": "Created by warehouse bot " + time.Now().Format("02.01.2006 15:04"),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode counterparty: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/entity/counterparty", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		c.log.Info("counterparty already exists", "phone", phone)
		return true, nil
	}
	if resp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("server error %d: %s", resp.StatusCode, snippet)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("counterparty create rejected",
			"phone", phone, "status", resp.StatusCode, "body", string(snippet))
		return false, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&created); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return created.ID != "", nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json;charset=utf-8")
}

// refID extracts the entity ID from a meta href.
func refID(ref *entityRef) string {
	if ref == nil {
		return ""
	}
	href := ref.Meta.Href
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
