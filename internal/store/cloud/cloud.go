// Package cloud talks to the Ditto HTTP API (/api/v4/store/execute).
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Makepad-fr/syncprobe/internal/model"
)

const executePath = "/api/v4/store/execute"

// APIError is a non-2xx answer from the store endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store api: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Statement is a DQL statement with named arguments.
type Statement struct {
	Query string         `json:"statement"`
	Args  map[string]any `json:"args,omitempty"`
}

// Result is the decoded execute response.
type Result struct {
	Items              []map[string]any
	MutatedDocumentIDs []any
	Warnings           []any
	TransactionID      int64
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var wire struct {
		Items              []json.RawMessage `json:"items"`
		MutatedDocumentIDs []any             `json:"mutatedDocumentIds"`
		Warnings           []any             `json:"warnings"`
		TransactionID      int64             `json:"transactionId"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	r.MutatedDocumentIDs = wire.MutatedDocumentIDs
	r.Warnings = wire.Warnings
	r.TransactionID = wire.TransactionID
	r.Items = make([]map[string]any, 0, len(wire.Items))
	for _, raw := range wire.Items {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		// Some deployments wrap documents as {"value": {...}}.
		if inner, ok := doc["value"].(map[string]any); ok && len(doc) == 1 {
			doc = inner
		}
		r.Items = append(r.Items, doc)
	}
	return nil
}

// Tasks converts the result items.
func (r *Result) Tasks() []model.Task {
	out := make([]model.Task, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, model.TaskFromMap(it))
	}
	return out
}

type Options struct {
	BaseURL    string // host or URL; https is assumed when no scheme is given
	APIKey     string
	Collection string
	RateLimit  float64 // requests per second, <= 0 disables pacing
	HTTPClient *http.Client
}

type Client struct {
	endpoint   string
	apiKey     string
	collection string
	http       *http.Client
	limiter    *rate.Limiter
}

func New(opt Options) (*Client, error) {
	if opt.BaseURL == "" {
		return nil, errors.New("store api: empty base url")
	}
	if opt.APIKey == "" {
		return nil, errors.New("store api: empty api key")
	}
	base := strings.TrimRight(opt.BaseURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	c := &Client{
		endpoint:   base + executePath,
		apiKey:     opt.APIKey,
		collection: opt.Collection,
		http:       opt.HTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	if c.collection == "" {
		c.collection = "tasks"
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if opt.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opt.RateLimit), 1)
	}
	return c, nil
}

func (c *Client) Collection() string { return c.collection }

// Execute runs a single statement.
func (c *Client) Execute(ctx context.Context, st Statement) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal statement: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	var res Result
	if len(bytes.TrimSpace(raw)) == 0 {
		return &res, nil
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

// Upsert inserts the task, replacing any document with the same ID.
func (c *Client) Upsert(ctx context.Context, t model.Task) error {
	_, err := c.Execute(ctx, Statement{
		Query: fmt.Sprintf("INSERT INTO %s DOCUMENTS (:newTask) ON ID CONFLICT DO UPDATE", c.collection),
		Args:  map[string]any{"newTask": t.Map()},
	})
	return err
}

// Get returns the task with the given ID, or found=false.
func (c *Client) Get(ctx context.Context, id string) (model.Task, bool, error) {
	res, err := c.Execute(ctx, Statement{
		Query: fmt.Sprintf("SELECT * FROM %s WHERE _id = :docId", c.collection),
		Args:  map[string]any{"docId": id},
	})
	if err != nil {
		return model.Task{}, false, err
	}
	tasks := res.Tasks()
	if len(tasks) == 0 {
		return model.Task{}, false, nil
	}
	return tasks[0], true, nil
}

// List returns the collection ordered by title.
func (c *Client) List(ctx context.Context, includeDeleted bool) ([]model.Task, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE deleted = false", c.collection)
	if includeDeleted {
		q = fmt.Sprintf("SELECT * FROM %s", c.collection)
	}
	res, err := c.Execute(ctx, Statement{Query: q})
	if err != nil {
		return nil, err
	}
	tasks := res.Tasks()
	if !includeDeleted {
		tasks = model.Visible(tasks)
	}
	model.SortByTitle(tasks)
	return tasks, nil
}

func (c *Client) SetDone(ctx context.Context, id string, done bool) error {
	return c.update(ctx, "done = :done", map[string]any{"id": id, "done": done})
}

func (c *Client) SetTitle(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("empty title")
	}
	return c.update(ctx, "title = :title", map[string]any{"id": id, "title": title})
}

// SoftDelete flags the task; apps hide deleted tasks.
func (c *Client) SoftDelete(ctx context.Context, id string) error {
	return c.update(ctx, "deleted = true", map[string]any{"id": id})
}

func (c *Client) update(ctx context.Context, set string, args map[string]any) error {
	_, err := c.Execute(ctx, Statement{
		Query: fmt.Sprintf("UPDATE %s SET %s WHERE _id = :id", c.collection, set),
		Args:  args,
	})
	return err
}
