package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Wire shapes of the responses the simulator reads.
type employee struct {
	ID           string   `json:"id"`
	Availability string   `json:"availability"`
	CurrentTasks []string `json:"current_tasks"`
	Skills       []string `json:"skills"`
}

type candidate struct {
	EmployeeID   string  `json:"employee_id"`
	Availability string  `json:"availability"`
	Score        float64 `json:"score"`
}

type matchResult struct {
	Found      bool        `json:"found"`
	Best       *candidate  `json:"best"`
	Candidates []candidate `json:"candidates"`
}

type task struct {
	ID         int    `json:"task_id"`
	Name       string `json:"name"`
	EmployeeID string `json:"assigned_employee_id"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
}

type taskResult struct {
	Task    task   `json:"task"`
	Warning string `json:"warning"`
}

type entry struct {
	Rank       int     `json:"rank"`
	EmployeeID string  `json:"employee_id"`
	Score      float64 `json:"score"`
	Completed  int     `json:"completed"`
	OnTimeRate float64 `json:"on_time_completion_rate"`
}

type performanceRecord struct {
	EmployeeID     string  `json:"employee_id"`
	TotalCompleted int     `json:"total_completed"`
	OnTimeRate     float64 `json:"on_time_completion_rate"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// isConflict reports a 409, which the service uses for unavailable employees.
func isConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

// client is a thin JSON client for the matchmaker API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{base: base, http: &http.Client{Timeout: timeout}}
}

// do sends a request and decodes a 2xx JSON response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any, header http.Header) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

func (c *client) skills(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/skills", nil, &out, nil)
	return out, err
}

func (c *client) employees(ctx context.Context) ([]employee, error) {
	var out []employee
	err := c.do(ctx, http.MethodGet, "/employees", nil, &out, nil)
	return out, err
}

func (c *client) match(ctx context.Context, skills []string) (matchResult, error) {
	var out matchResult
	err := c.do(ctx, http.MethodPost, "/match", map[string]any{"required_skills": skills}, &out, nil)
	return out, err
}

func (c *client) createTask(ctx context.Context, spec taskSpec, employeeID string) (taskResult, error) {
	body := map[string]any{
		"name":            spec.Name,
		"description":     spec.Description,
		"required_skills": spec.Skills,
		"priority":        spec.Priority,
		"deadline":        spec.Deadline.Format(time.RFC3339),
		"employee_id":     employeeID,
	}
	h := http.Header{}
	h.Set("Idempotency-Key", spec.Key)
	var out taskResult
	err := c.do(ctx, http.MethodPost, "/tasks", body, &out, h)
	return out, err
}

func (c *client) progress(ctx context.Context, id, pct int) (taskResult, error) {
	var out taskResult
	err := c.do(ctx, http.MethodPost, "/tasks/"+strconv.Itoa(id)+"/progress", map[string]int{"progress": pct}, &out, nil)
	return out, err
}

func (c *client) complete(ctx context.Context, id int) (taskResult, error) {
	var out taskResult
	err := c.do(ctx, http.MethodPost, "/tasks/"+strconv.Itoa(id)+"/complete", nil, &out, nil)
	return out, err
}

func (c *client) reassign(ctx context.Context, id int, employeeID string) (taskResult, error) {
	var out taskResult
	err := c.do(ctx, http.MethodPost, "/tasks/"+strconv.Itoa(id)+"/reassign", map[string]string{"employee_id": employeeID}, &out, nil)
	return out, err
}

func (c *client) tasks(ctx context.Context) ([]task, error) {
	var out []task
	err := c.do(ctx, http.MethodGet, "/tasks", nil, &out, nil)
	return out, err
}

func (c *client) performance(ctx context.Context) ([]performanceRecord, error) {
	var out []performanceRecord
	err := c.do(ctx, http.MethodGet, "/performance", nil, &out, nil)
	return out, err
}

func (c *client) leaderboard(ctx context.Context, limit int) ([]entry, error) {
	var out []entry
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	err := c.do(ctx, http.MethodGet, "/leaderboard?"+q.Encode(), nil, &out, nil)
	return out, err
}
