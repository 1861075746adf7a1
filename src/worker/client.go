package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jacokyle01/game-review/src/models"
)

// Client talks to a remote primary server. It is the JobSource and
// ResultSink of a worker running in another process.
type Client struct {
	serverURL string
	http      *http.Client
}

// NewClient creates a new worker client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		// the server holds /job open for its poll window
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) NextJob(ctx context.Context) (models.Job, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/job", nil)
	if err != nil {
		return models.Job{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Job{}, false, fmt.Errorf("get job: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return models.Job{}, false, nil
	case http.StatusOK:
	default:
		return models.Job{}, false, statusError("get job", resp)
	}

	var job models.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return models.Job{}, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

func (c *Client) SubmitResult(ctx context.Context, result models.Result) error {
	return c.post(ctx, "/result", result)
}

func (c *Client) CompleteJob(ctx context.Context, completion models.Completion) error {
	return c.post(ctx, "/complete", completion)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("post "+path, resp)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: %s: %s", op, resp.Status, strings.TrimSpace(string(body)))
}
