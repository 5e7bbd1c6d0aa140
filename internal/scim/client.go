package scim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/reposync/admin-backend/internal/directory/patch"
	"github.com/reposync/admin-backend/internal/directory/query"
)

// Client is the remote directory surface this backend talks to. Search
// filters arrive fully compiled; the client layer adds no semantics of its
// own beyond transport. Retries and response caching are deliberately the
// caller's concern.
type Client interface {
	SearchUsers(ctx context.Context, q query.Compiled) (*ListResponse[User], error)
	SearchGroups(ctx context.Context, q query.Compiled) (*ListResponse[Group], error)
	SearchRepositories(ctx context.Context, q query.Compiled) (*ListResponse[Repository], error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetGroup(ctx context.Context, id string) (*Group, error)
	PatchUser(ctx context.Context, id string, ops []patch.Op) (*User, error)
	PatchGroup(ctx context.Context, id string, ops []patch.Op) (*Group, error)
	CreateGroup(ctx context.Context, group *Group) (*Group, error)
	DeleteGroup(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scim: unexpected status %d: %s", e.Status, e.Body)
}

type PatchRequest struct {
	Schemas    []string   `json:"schemas"`
	Operations []patch.Op `json:"Operations"`
}

type HTTPClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) (*HTTPClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("scim: parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		base:  base,
		token: token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (c *HTTPClient) SearchUsers(ctx context.Context, q query.Compiled) (*ListResponse[User], error) {
	var out ListResponse[User]
	if err := c.do(ctx, http.MethodGet, "/Users", searchValues(q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SearchGroups(ctx context.Context, q query.Compiled) (*ListResponse[Group], error) {
	var out ListResponse[Group]
	if err := c.do(ctx, http.MethodGet, "/Groups", searchValues(q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SearchRepositories(ctx context.Context, q query.Compiled) (*ListResponse[Repository], error) {
	var out ListResponse[Repository]
	if err := c.do(ctx, http.MethodGet, "/Repositories", searchValues(q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/Users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetGroup(ctx context.Context, id string) (*Group, error) {
	var out Group
	if err := c.do(ctx, http.MethodGet, "/Groups/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PatchUser(ctx context.Context, id string, ops []patch.Op) (*User, error) {
	var out User
	body := PatchRequest{Schemas: []string{PatchOpSchema}, Operations: ops}
	if err := c.do(ctx, http.MethodPatch, "/Users/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PatchGroup(ctx context.Context, id string, ops []patch.Op) (*Group, error) {
	var out Group
	body := PatchRequest{Schemas: []string{PatchOpSchema}, Operations: ops}
	if err := c.do(ctx, http.MethodPatch, "/Groups/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateGroup(ctx context.Context, group *Group) (*Group, error) {
	var out Group
	if err := c.do(ctx, http.MethodPost, "/Groups", nil, group, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/Groups/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ServiceProviderConfig", nil, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, qs url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("scim: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	target := c.base.JoinPath(path)
	if len(qs) > 0 {
		target.RawQuery = qs.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("scim: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/scim+json")
	}
	req.Header.Set("Accept", "application/scim+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scim: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("scim: decode response: %w", err)
	}
	return nil
}

func searchValues(q query.Compiled) url.Values {
	values := url.Values{}
	if q.Filter != "" {
		values.Set("filter", q.Filter)
	}
	if q.StartIndex != nil {
		values.Set("startIndex", strconv.Itoa(*q.StartIndex))
	}
	if q.Count != nil {
		values.Set("count", strconv.Itoa(*q.Count))
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
		if q.SortOrder != query.OrderNone {
			values.Set("sortOrder", string(q.SortOrder))
		}
	}
	return values
}
