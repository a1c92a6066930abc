// Package marketplace is a client for the seller API used to import listings.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// ErrNoTaskID is returned when no chunk of a submission was accepted.
var ErrNoTaskID = errors.New("no import task was created")

// DefaultBaseURL is the production seller API.
const DefaultBaseURL = "https://api-seller.ozon.ru"

const (
	importPath   = "/v3/product/import"
	importInfo   = "/v1/product/import/info"
	categoryTree = "/v1/description-category/tree"
)

// Config configures a Client.
type Config struct {
	Credentials model.Credentials
	BaseURL     string
	Retry       common.RetryOptions
	BatchSize   int
	BatchDelay  time.Duration
	Timeout     time.Duration
}

// BatchResult reports the outcome of one submitted chunk.
type BatchResult struct {
	Err    error
	Index  int
	Total  int
	Items  int
	TaskID int64
}

// Client talks to the seller API. Import chunks are never retried; reads are.
type Client struct {
	httpClient *http.Client
	pacer      *pacer
	// OnBatch, when set, is called after every chunk.
	OnBatch   func(BatchResult)
	creds     model.Credentials
	baseURL   string
	retry     common.RetryOptions
	batchSize int
}

// New creates a client. Both credential halves are required.
func New(cfg Config) (*Client, error) {
	if !cfg.Credentials.Complete() {
		return nil, fmt.Errorf("%w: marketplace client_id and api_key are required", common.ErrMissingConfig)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = common.DefaultRetryOptions()
	}

	return &Client{
		creds:     cfg.Credentials,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		batchSize: cfg.BatchSize,
		retry:     cfg.Retry,
		pacer:     newPacer(cfg.BatchDelay),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type importRequest struct {
	Items []model.ListingPayload `json:"items"`
}

type importResponse struct {
	Result struct {
		TaskID int64 `json:"task_id"`
	} `json:"result"`
}

// SubmitItems imports items in chunks of the configured batch size, waiting
// the batch delay between chunks. A failed chunk is logged and the rest are
// still sent. The id of the last accepted task is returned.
func (c *Client) SubmitItems(ctx context.Context, items []model.ListingPayload) (int64, error) {
	if len(items) == 0 {
		return 0, ErrNoTaskID
	}

	total := (len(items) + c.batchSize - 1) / c.batchSize
	var (
		taskID int64
		failed int
	)

	for i := 0; i < len(items); i += c.batchSize {
		chunk := items[i:min(i+c.batchSize, len(items))]
		index := i/c.batchSize + 1

		if err := c.pacer.wait(ctx); err != nil {
			return taskID, err
		}

		slog.Info("Submitting batch", "batch", index, "total", total, "items", len(chunk))

		var resp importResponse
		err := c.post(ctx, importPath, importRequest{Items: chunk}, &resp)
		c.pacer.done()
		if err == nil && resp.Result.TaskID == 0 {
			err = fmt.Errorf("response carried no task_id")
		}

		result := BatchResult{Index: index, Total: total, Items: len(chunk), Err: err}
		if err != nil {
			failed++
			common.LogError(err, "Batch submission failed", common.Fields{"batch": index, "items": len(chunk)})
		} else {
			taskID = resp.Result.TaskID
			result.TaskID = taskID
			slog.Info("Import task created", "batch", index, "task_id", taskID)
		}
		if c.OnBatch != nil {
			c.OnBatch(result)
		}
	}

	if taskID == 0 {
		return 0, fmt.Errorf("%w: %d of %d batches failed", ErrNoTaskID, failed, total)
	}
	return taskID, nil
}

type taskInfoResponse struct {
	Result struct {
		Items []model.TaskItemStatus `json:"items"`
		Total int                    `json:"total"`
	} `json:"result"`
}

// TaskInfo fetches the per-item status of an import task.
func (c *Client) TaskInfo(ctx context.Context, taskID int64) (*model.TaskInfo, error) {
	var resp taskInfoResponse
	err := common.WithRetry(ctx, func() error {
		return c.post(ctx, importInfo, map[string]int64{"task_id": taskID}, &resp)
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}

	return &model.TaskInfo{
		TaskID:    taskID,
		Items:     resp.Result.Items,
		Total:     resp.Result.Total,
		CheckedAt: time.Now().UTC(),
	}, nil
}

// DescriptionTree downloads the category and type tree.
func (c *Client) DescriptionTree(ctx context.Context, language string) (model.CategoryNode, error) {
	if language == "" {
		language = "DEFAULT"
	}

	var raw json.RawMessage
	err := common.WithRetry(ctx, func() error {
		return c.post(ctx, categoryTree, map[string]string{"language": language}, &raw)
	}, c.retry)
	if err != nil {
		return model.CategoryNode{}, fmt.Errorf("failed to download category tree: %w", err)
	}

	root, err := taxonomy.Parse(raw)
	if err != nil {
		return model.CategoryNode{}, fmt.Errorf("failed to parse category tree: %w", err)
	}
	return root, nil
}

// post sends a JSON request and decodes the JSON response into out. Errors
// are classified for WithRetry.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to marshal request: %w", err), Retryable: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Id", c.creds.ClientID)
	req.Header.Set("Api-Key", c.creds.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrMarketplaceUnavailable, err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &common.RetryableError{Err: fmt.Errorf("%w (status %d)", common.ErrUnauthorized, resp.StatusCode), Retryable: false}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &common.RetryableError{
			Err:        fmt.Errorf("%w: %s", common.ErrRateLimit, truncate(data)),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Retryable:  true,
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w (status %d): %s", common.ErrMarketplaceUnavailable, resp.StatusCode, truncate(data)),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return &common.RetryableError{
			Err:       fmt.Errorf("marketplace API error (status %d): %s", resp.StatusCode, truncate(data)),
			Retryable: false,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to parse response: %w", err), Retryable: false}
	}
	return nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(data []byte) string {
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
