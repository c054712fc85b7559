// Package instances talks to the remote worker that hands out scraping
// instances. Responses are passed through unchanged.
package instances

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when no base URL is set.
var ErrNotConfigured = errors.New("instance service base URL is not configured")

// Response is the status and raw JSON body returned by the remote worker.
type Response struct {
	Status int
	Body   []byte
}

type instanceBody struct {
	Instance string `json:"instance"`
}

// Client is a thin wrapper over the remote worker's endpoints
type Client struct {
	http    *resty.Client
	baseURL string
}

// New creates a client for baseURL
func New(baseURL string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	return &Client{http: client, baseURL: baseURL}
}

// Create asks the worker to create an instance described by data.
func (c *Client) Create(ctx context.Context, data string) (Response, error) {
	return c.post(ctx, "/create", data)
}

// Get fetches an available instance.
func (c *Client) Get(ctx context.Context) (Response, error) {
	if c.baseURL == "" {
		return Response{}, ErrNotConfigured
	}
	res, err := c.http.R().SetContext(ctx).Get("/get")
	if err != nil {
		return Response{}, fmt.Errorf("failed to get instance: %w", err)
	}
	return Response{Status: res.StatusCode(), Body: res.Body()}, nil
}

// Release returns an instance to the worker.
func (c *Client) Release(ctx context.Context, data string) (Response, error) {
	return c.post(ctx, "/release", data)
}

// Close shuts an instance down.
func (c *Client) Close(ctx context.Context, data string) (Response, error) {
	return c.post(ctx, "/close", data)
}

func (c *Client) post(ctx context.Context, path, data string) (Response, error) {
	if c.baseURL == "" {
		return Response{}, ErrNotConfigured
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(instanceBody{Instance: data}).
		Post(path)
	if err != nil {
		return Response{}, fmt.Errorf("failed to call %s: %w", path, err)
	}
	return Response{Status: res.StatusCode(), Body: res.Body()}, nil
}

// OK reports whether the worker answered with a 2xx status.
func (r Response) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}
