// Package catalogapi is the HTTP client for the product/category REST service.
package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"catalogweb/internal/domain"
)

var ErrNotFound = errors.New("catalogapi: not found")

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalogapi: %s: upstream status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRate caps outbound calls at perSecond with a small burst.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond/2)))
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewProduct is the payload for CreateProduct.
type NewProduct struct {
	Name        string
	Description string
	Price       float64
	Categories  []string
	Images      []Upload
}

type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ListProducts fetches one page. Every non-empty filter is sent as a query parameter.
func (c *Client) ListProducts(ctx context.Context, filters url.Values, page int) (domain.ListPage, error) {
	q := url.Values{}
	for k, vs := range filters {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	q.Set("page", strconv.Itoa(max(page, 1)))

	var out domain.ListPage
	err := c.do(ctx, "list products", http.MethodGet, "/products", q, nil, "", &out)
	return out, err
}

func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, "get product", http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, nil, "", &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, "delete product", http.MethodDelete, "/products/"+strconv.FormatInt(id, 10), nil, nil, "", nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := c.do(ctx, "list categories", http.MethodGet, "/categories", nil, nil, "", &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return domain.Category{}, err
	}
	var out domain.Category
	err = c.do(ctx, "create category", http.MethodPost, "/categories", nil, bytes.NewReader(body), "application/json", &out)
	return out, err
}

// CreateProduct posts p as multipart form data.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (domain.Product, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", p.Name},
		{"description", p.Description},
		{"price", strconv.FormatFloat(p.Price, 'f', -1, 64)},
	}
	for _, cat := range p.Categories {
		fields = append(fields, [2]string{"categories[]", cat})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return domain.Product{}, fmt.Errorf("catalogapi: create product: %w", err)
		}
	}
	for _, img := range p.Images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="%s"`, escapeQuotes(img.Filename)))
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return domain.Product{}, fmt.Errorf("catalogapi: create product: %w", err)
		}
		if _, err := io.Copy(part, img.Body); err != nil {
			return domain.Product{}, fmt.Errorf("catalogapi: create product: read %s: %w", img.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return domain.Product{}, err
	}

	var out domain.Product
	err := c.do(ctx, "create product", http.MethodPost, "/products", nil, &buf, mw.FormDataContentType(), &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("catalogapi: %s: %w", op, err)
		}
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("catalogapi: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalogapi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalogapi: %s: decode: %w", op, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
