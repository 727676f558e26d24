package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/canopy/pkg/okr"
)

// maxPages bounds how many "next" links a single list call follows.
const maxPages = 1000

// maxErrorBody bounds how much of an error response is kept in StatusError.
const maxErrorBody = 2048

// Options configures an HTTPClient.
type Options struct {
	// BaseURL is the API prefix, e.g. "https://okr.example.com/okrs".
	BaseURL string

	// Token, when set, is sent as "Authorization: Bearer <token>".
	Token string

	// Timeout applies per request when HTTPClient is nil. Default 10s.
	Timeout time.Duration

	// HTTPClient overrides the transport (tests use httptest servers).
	HTTPClient *http.Client
}

// HTTPClient implements API against the DRF backend.
// It is safe for concurrent use.
type HTTPClient struct {
	base  *url.URL
	token string
	hc    *http.Client

	epics      *collection[okr.Epic]
	objectives *collection[okr.Objective]
	keyResults *collection[okr.KeyResult]
	activities *collection[okr.Activity]
	tasks      *collection[okr.Task]
}

// NewHTTPClient validates opts and returns a ready client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := &HTTPClient{
		base:  base,
		token: opts.Token,
		hc:    hc,
	}
	c.epics = &collection[okr.Epic]{c: c, name: ResourceEpics}
	c.objectives = &collection[okr.Objective]{c: c, name: ResourceObjectives}
	c.keyResults = &collection[okr.KeyResult]{c: c, name: ResourceKeyResults}
	c.activities = &collection[okr.Activity]{c: c, name: ResourceActivities}
	c.tasks = &collection[okr.Task]{c: c, name: ResourceTasks}

	return c, nil
}

func (c *HTTPClient) Epics() Resource[okr.Epic]           { return c.epics }
func (c *HTTPClient) Objectives() Resource[okr.Objective] { return c.objectives }
func (c *HTTPClient) KeyResults() Resource[okr.KeyResult] { return c.keyResults }
func (c *HTTPClient) Activities() Resource[okr.Activity]  { return c.activities }
func (c *HTTPClient) Tasks() Resource[okr.Task]           { return c.tasks }

// Root fetches GET /projects/{id}/?tipo={mision|proyecto}.
func (c *HTTPClient) Root(ctx context.Context, id okr.ID, kind okr.RootKind) (okr.RootDetail, error) {
	var detail okr.RootDetail
	if id.IsZero() {
		return detail, fmt.Errorf("root id cannot be empty")
	}
	if err := kind.Validate(); err != nil {
		return detail, err
	}

	query := url.Values{"tipo": []string{kind.Tipo()}}
	target := c.resolve(fmt.Sprintf("%s/%s/", ResourceProjects, id.String()), query)
	if err := c.do(ctx, http.MethodGet, target, nil, &detail); err != nil {
		return detail, err
	}
	return detail, nil
}

// resolve builds an absolute URL for a path relative to the base.
func (c *HTTPClient) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request. body, when non-nil, is JSON-encoded; out, when
// non-nil, receives the decoded response.
func (c *HTTPClient) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, req.URL.Path, err)
	}
	return nil
}

// collection implements Resource for one backend collection.
type collection[T okr.Node] struct {
	c    *HTTPClient
	name string
}

// listPage is the DRF pagination envelope.
type listPage[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

// List fetches GET /{resource}/?{key}={id}, following "next" links. A bare
// JSON array is accepted for unpaginated deployments.
func (r *collection[T]) List(ctx context.Context, parent Parent) ([]T, error) {
	var query url.Values
	if parent.Key != "" {
		query = url.Values{parent.Key: []string{parent.ID.String()}}
	}
	target := r.c.resolve(r.name+"/", query)

	items := []T{}
	for page := 0; target != ""; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("list %s: more than %d pages", r.name, maxPages)
		}

		var raw json.RawMessage
		if err := r.c.do(ctx, http.MethodGet, target, nil, &raw); err != nil {
			return nil, err
		}

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var bare []T
			if err := json.Unmarshal(trimmed, &bare); err != nil {
				return nil, fmt.Errorf("failed to decode %s list: %w", r.name, err)
			}
			return append(items, bare...), nil
		}

		var envelope listPage[T]
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode %s list: %w", r.name, err)
		}
		items = append(items, envelope.Results...)

		target = ""
		if envelope.Next != nil {
			target = *envelope.Next
		}
	}

	return items, nil
}

// Create posts to /{resource}/.
func (r *collection[T]) Create(ctx context.Context, body map[string]any) (T, error) {
	var created T
	if err := r.c.do(ctx, http.MethodPost, r.c.resolve(r.name+"/", nil), body, &created); err != nil {
		return created, err
	}
	return created, nil
}

// Update puts the full field set to /{resource}/{id}/.
func (r *collection[T]) Update(ctx context.Context, id okr.ID, body map[string]any) (T, error) {
	var updated T
	if id.IsZero() {
		return updated, fmt.Errorf("update %s: id cannot be empty", r.name)
	}
	target := r.c.resolve(fmt.Sprintf("%s/%s/", r.name, id.String()), nil)
	if err := r.c.do(ctx, http.MethodPut, target, body, &updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete issues DELETE /{resource}/{id}/.
func (r *collection[T]) Delete(ctx context.Context, id okr.ID) error {
	if id.IsZero() {
		return fmt.Errorf("delete %s: id cannot be empty", r.name)
	}
	target := r.c.resolve(fmt.Sprintf("%s/%s/", r.name, id.String()), nil)
	return r.c.do(ctx, http.MethodDelete, target, nil, nil)
}
