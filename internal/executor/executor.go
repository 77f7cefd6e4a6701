// Package executor runs operator job commands. The scheduler treats
// commands as opaque strings; everything about their meaning lives
// behind this interface.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is the output of one command execution.
type Result struct {
	Output string
}

// Executor executes a single command. An error return marks the run
// failed; Output is stored as the run result either way.
type Executor interface {
	Execute(ctx context.Context, command string) (*Result, error)
}

// HTTPExecutor forwards commands to an external operator endpoint. It
// POSTs {"command": ...} and treats any 2xx response as success, taking
// the output from the response body.
type HTTPExecutor struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPExecutor(endpoint string) *HTTPExecutor {
	return &HTTPExecutor{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, command string) (*Result, error) {
	if e.endpoint == "" {
		return nil, fmt.Errorf("operator executor endpoint not configured")
	}
	raw, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	output := parseOutput(body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{Output: output}, fmt.Errorf("executor returned status %d: %s", resp.StatusCode, output)
	}
	return &Result{Output: output}, nil
}

// parseOutput prefers a JSON {"output": ...} envelope and falls back to
// the raw body.
func parseOutput(body []byte) string {
	var envelope struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Output != "" {
		return envelope.Output
	}
	return strings.TrimSpace(string(body))
}
