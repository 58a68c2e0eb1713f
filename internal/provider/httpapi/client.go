// Package httpapi implements the transformation provider over its REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// Sentinel errors for provider failures. Credentials, rejected requests and unknown
// jobs are permanent: repeating the same call cannot succeed.
var (
	ErrUnavailable     error = &providerError{msg: "transformation provider unavailable"}
	ErrTimeout         error = &providerError{msg: "transformation provider timeout"}
	ErrUnauthorized    error = &providerError{msg: "transformation provider rejected credentials", permanent: true}
	ErrRejected        error = &providerError{msg: "transformation provider rejected request", permanent: true}
	ErrUnknownJob      error = &providerError{msg: "transformation provider does not know job", permanent: true}
	ErrInvalidResponse error = &providerError{msg: "transformation provider returned invalid response"}
)

type providerError struct {
	msg       string
	permanent bool
}

func (e *providerError) Error() string { return e.msg }

// Permanent reports whether retrying the failed call is pointless.
func (e *providerError) Permanent() bool { return e.permanent }

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// Client implements models.TransformationProvider using the provider's HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a provider client. token is sent as a bearer credential on every request.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "http" }

// Submit creates one remote transformation job.
func (c *Client) Submit(ctx context.Context, input models.AssetRef, effect string) (models.JobHandle, error) {
	body, err := json.Marshal(submitRequest{Input: string(input), Effect: effect})
	if err != nil {
		return models.JobHandle{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transformations", bytes.NewReader(body))
	if err != nil {
		return models.JobHandle{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	job, err := c.do(httpReq)
	if err != nil {
		return models.JobHandle{}, err
	}
	if job.ID == "" {
		return models.JobHandle{}, fmt.Errorf("%w: submission response has no id", ErrInvalidResponse)
	}

	status, err := job.remoteStatus()
	if err != nil {
		return models.JobHandle{}, err
	}
	return models.JobHandle{RemoteID: job.ID, Initial: status}, nil
}

// Status fetches the current state of a remote job.
func (c *Client) Status(ctx context.Context, remoteID string) (models.RemoteStatus, error) {
	u := fmt.Sprintf("%s/v1/transformations/%s", c.baseURL, url.PathEscape(remoteID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	job, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return job.remoteStatus()
}

// Ready checks that the provider is reachable and accepts our credential.
func (c *Client) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: provider not ready (status %d)", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*jobResponse, error) {
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrInvalidResponse, err)
	}
	return &job, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classifyStatus maps non-2xx responses to sentinel errors, keeping a bounded body excerpt.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(excerpt))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrUnknownJob, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrTimeout, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// --- wire types ---

type submitRequest struct {
	Input  string `json:"input"`
	Effect string `json:"effect"`
}

type jobResponse struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Output   string   `json:"output,omitempty"`
	Error    string   `json:"error,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

// remoteStatus converts the loosely typed wire status into the closed RemoteStatus variant.
func (j *jobResponse) remoteStatus() (models.RemoteStatus, error) {
	switch strings.ToLower(j.Status) {
	case "pending", "running":
		return models.RemotePending{ProgressHint: j.Progress}, nil
	case "completed":
		return models.RemoteCompleted{Output: j.Output}, nil
	case "failed":
		reason := j.Error
		if reason == "" {
			reason = "provider reported failure without a reason"
		}
		return models.RemoteFailed{Reason: reason}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidResponse, j.Status)
	}
}

// Compile-time check that Client implements TransformationProvider.
var _ models.TransformationProvider = (*Client)(nil)
