package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

const (
	defaultTimeout = 15 * time.Second
	apiVersion     = "v2023-08-01"
)

// ErrNotFound indicates a query matched no document.
var ErrNotFound = errors.New("content: document not found")

// Client is a minimal client for the headless CMS data API: parameterized
// queries, document creation, and patch-by-id. Write calls require a token
// with write access to the dataset.
type Client struct {
	baseURL    string
	dataset    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a content API client.
func NewClient(baseURL, dataset, token string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dataset:    dataset,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// Query runs a parameterized query and decodes the result into out.
func (c *Client) Query(ctx context.Context, query string, params map[string]string, out any) error {
	values := url.Values{}
	values.Set("query", query)
	for k, v := range params {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("content: encode param %s: %w", k, err)
		}
		values.Set("$"+k, string(encoded))
	}

	endpoint := fmt.Sprintf("%s/%s/data/query/%s?%s", c.baseURL, apiVersion, c.dataset, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("content: query request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("content: query http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("content: query status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("content: query decode: %w", err)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("content: result decode: %w", err)
	}
	return nil
}

// CreateDocument creates a document and returns its generated id.
func (c *Client) CreateDocument(ctx context.Context, doc any) (string, error) {
	results, err := c.mutate(ctx, []map[string]any{{"create": doc}})
	if err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].ID == "" {
		return "", fmt.Errorf("content: create returned no document id")
	}
	return results[0].ID, nil
}

// PatchDocument sets fields on an existing document.
func (c *Client) PatchDocument(ctx context.Context, docID string, set map[string]any) error {
	_, err := c.mutate(ctx, []map[string]any{{
		"patch": map[string]any{
			"id":  docID,
			"set": set,
		},
	}})
	return err
}

type mutationResult struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
}

func (c *Client) mutate(ctx context.Context, mutations []map[string]any) ([]mutationResult, error) {
	payload, err := json.Marshal(map[string]any{"mutations": mutations})
	if err != nil {
		return nil, fmt.Errorf("content: encode mutations: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/data/mutate/%s?returnIds=true", c.baseURL, apiVersion, c.dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("content: mutate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content: mutate http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("content: mutate status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Results []mutationResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("content: mutate decode: %w", err)
	}
	return envelope.Results, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
