package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultLoginURL = "http://localhost:5000/v1/users/login"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

type Config interface {
	LoginURL() string
	RequestTimeout() time.Duration
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User struct {
		Admin bool `json:"admin"`
	} `json:"user"`
}

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("login rejected with status %d: %s", e.Code, e.Body)
}

type Client struct {
	url  string
	http *http.Client
}

func New(cfg Config) *Client {
	url := cfg.LoginURL()
	if url == "" {
		url = DefaultLoginURL
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

func (c *Client) URL() string {
	return c.url
}

// Login posts the credentials to the gateway. authorization is sent verbatim
// as the Authorization header.
func (c *Client) Login(ctx context.Context, req LoginRequest, authorization string) (*LoginResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request failed: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request failed: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	if authorization != "" {
		hreq.Header.Set("Authorization", authorization)
	}

	log.Debugf("[API] POST %s as %s", c.url, req.Name)
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer func(b io.ReadCloser) {
		_ = b.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	lr := &LoginResponse{}
	err = json.NewDecoder(resp.Body).Decode(lr)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding response failed: %w", err)
	}
	return lr, nil
}
