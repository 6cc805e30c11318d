// Package firestore persists job documents through the Firestore REST API.
// The typed-value wire representation is confined to this package; callers
// work with plain domain structures.
package firestore

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

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

const defaultCollection = "itineraries"

// TokenSource supplies a bearer token for one store operation. A fresh token
// is minted per call; nothing is cached at this layer.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures the Firestore client.
type Options struct {
	ProjectID  string
	Collection string
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs authenticated document operations for one collection.
type Client struct {
	projectID  string
	collection string
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, errors.New("firestore: project id is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("firestore: token source is required")
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		collection = defaultCollection
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://firestore.googleapis.com/v1"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		projectID:  strings.TrimSpace(opts.ProjectID),
		collection: collection,
		baseURL:    baseURL,
		tokens:     opts.Tokens,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) parentPath() string {
	return fmt.Sprintf("projects/%s/databases/(default)/documents", c.projectID)
}

func (c *Client) documentURL(jobID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.parentPath(), c.collection, url.PathEscape(jobID))
}

// CreateJob writes the initial document for a job. The caller must not
// return the job id to the client before this succeeds.
func (c *Client) CreateJob(ctx context.Context, job domain.Job) error {
	endpoint := fmt.Sprintf("%s/%s/%s?documentId=%s",
		c.baseURL, c.parentPath(), c.collection, url.QueryEscape(job.JobID))
	body := document{Fields: encodeJob(job)}
	if _, err := c.do(ctx, http.MethodPost, endpoint, body); err != nil {
		return fmt.Errorf("firestore: create job %s: %w", job.JobID, err)
	}
	c.logger.Debug().Str("job_id", job.JobID).Msg("firestore: created job document")
	return nil
}

// PatchTerminal overwrites the terminal fields of an existing document.
// It is an idempotent overwrite; replaying the same patch is harmless.
func (c *Client) PatchTerminal(ctx context.Context, jobID string, status domain.Status, itinerary []domain.Day, errMsg string, completedAt time.Time) error {
	q := url.Values{}
	for _, path := range []string{"status", "itinerary", "error", "completedAt"} {
		q.Add("updateMask.fieldPaths", path)
	}
	endpoint := c.documentURL(jobID) + "?" + q.Encode()

	fields := map[string]value{
		"status":      strVal(string(status)),
		"itinerary":   encodeItinerary(itinerary),
		"completedAt": tsVal(completedAt),
	}
	if errMsg != "" {
		fields["error"] = strVal(errMsg)
	} else {
		fields["error"] = nullVal()
	}
	if _, err := c.do(ctx, http.MethodPatch, endpoint, document{Fields: fields}); err != nil {
		return fmt.Errorf("firestore: patch job %s: %w", jobID, err)
	}
	c.logger.Debug().Str("job_id", jobID).Str("status", string(status)).Msg("firestore: patched terminal state")
	return nil
}

// GetJob fetches and decodes the current document for jobID. An unknown id
// yields domain.ErrNotFound; other fetch failures are reported as such.
func (c *Client) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	raw, err := c.do(ctx, http.MethodGet, c.documentURL(jobID), nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("firestore: get job %s: %w", jobID, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("firestore: decode job %s: %w", jobID, err)
	}
	job := decodeJob(doc)
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

// StaleProcessing returns jobs still in processing whose creation time is
// before olderThan, up to limit entries. Used by the sweeper.
func (c *Client) StaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]domain.Job, error) {
	endpoint := fmt.Sprintf("%s/%s:runQuery", c.baseURL, c.parentPath())
	query := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": c.collection}},
			"where": map[string]any{
				"compositeFilter": map[string]any{
					"op": "AND",
					"filters": []map[string]any{
						{"fieldFilter": map[string]any{
							"field": map[string]string{"fieldPath": "status"},
							"op":    "EQUAL",
							"value": strVal(string(domain.StatusProcessing)),
						}},
						{"fieldFilter": map[string]any{
							"field": map[string]string{"fieldPath": "createdAt"},
							"op":    "LESS_THAN",
							"value": tsVal(olderThan),
						}},
					},
				},
			},
			"limit": limit,
		},
	}
	raw, err := c.do(ctx, http.MethodPost, endpoint, query)
	if err != nil {
		return nil, fmt.Errorf("firestore: query stale jobs: %w", err)
	}
	var results []struct {
		Document *document `json:"document"`
	}
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("firestore: decode query results: %w", err)
	}
	var jobs []domain.Job
	for _, res := range results {
		if res.Document == nil {
			continue
		}
		jobs = append(jobs, decodeJob(*res.Document))
	}
	return jobs, nil
}

// do mints a token, performs one HTTP call and returns the response body.
// A 404 surfaces as domain.ErrNotFound so callers can distinguish it.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
