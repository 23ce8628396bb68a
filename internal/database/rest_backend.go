package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxRESTErrorBody = 32 << 10

// PostgREST codes for a table that is not exposed / does not exist.
var missingRelationCodes = map[string]bool{
	"42P01":    true,
	"PGRST205": true,
}

// RESTBackend talks to a PostgREST (Supabase) `rest/v1` API.
type RESTBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RESTConfig holds RESTBackend configuration.
type RESTConfig struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// NewRESTBackend validates cfg and builds a backend.
func NewRESTBackend(cfg RESTConfig) (*RESTBackend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTBackend{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// Select implements Backend.
func (b *RESTBackend) Select(ctx context.Context, table string, q Query) ([]Record, error) {
	params := filterParams(q.Where)
	params.Set("select", "*")
	if q.Order != nil {
		dir := "asc"
		if q.Order.Desc {
			dir = "desc"
		}
		params.Set("order", q.Order.Column+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return b.do(ctx, http.MethodGet, table, params, nil)
}

// Insert implements Backend.
func (b *RESTBackend) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	rows, err := b.do(ctx, http.MethodPost, table, nil, rec)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rec, nil
	}
	return rows[0], nil
}

// Update implements Backend.
func (b *RESTBackend) Update(ctx context.Context, table string, where []Predicate, patch Record) ([]Record, error) {
	if len(patch) == 0 {
		return b.Select(ctx, table, Query{Where: where})
	}
	return b.do(ctx, http.MethodPatch, table, filterParams(where), patch)
}

// Delete implements Backend.
func (b *RESTBackend) Delete(ctx context.Context, table string, where []Predicate) ([]Record, error) {
	return b.do(ctx, http.MethodDelete, table, filterParams(where), nil)
}

func filterParams(preds []Predicate) url.Values {
	params := url.Values{}
	for _, p := range preds {
		switch p.Op {
		case OpEq:
			params.Add(p.Column, "eq."+fmt.Sprint(p.Value))
		case OpIn:
			items := make([]string, len(p.Values))
			for i, v := range p.Values {
				items[i] = quoteListItem(fmt.Sprint(v))
			}
			params.Add(p.Column, "in.("+strings.Join(items, ",")+")")
		case OpIsNull:
			params.Add(p.Column, "is.null")
		}
	}
	return params
}

// quoteListItem double-quotes values that would break PostgREST list syntax.
func quoteListItem(s string) string {
	if strings.ContainsAny(s, `,()" `) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

func (b *RESTBackend) do(ctx context.Context, method, table string, params url.Values, body any) ([]Record, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", b.baseURL, url.PathEscape(table))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxRESTErrorBody))
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if missingRelationCodes[apiErr.Code] {
			return nil, fmt.Errorf("%w: %s", ErrRelationNotFound, table)
		}
		return nil, fmt.Errorf("supabase API error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Record{}, nil
	}

	var rows []Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rows == nil {
		rows = []Record{}
	}
	return rows, nil
}
