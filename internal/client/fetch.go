package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rescuelog/backend/internal/session"
)

// Fetcher sends requests on behalf of the signed-in user. A 401 or 403 answer
// triggers one session refresh and one retry; the retry's answer is final.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Manager
}

func NewFetcher(baseURL string, httpClient *http.Client, sess *session.Manager) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    sess,
	}
}

// NewRequest builds a request against the API base URL with an optional JSON body.
func (f *Fetcher) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req with the current access token. When the stored refresh token is
// rejected the session is already cleared and ErrReauthRequired is returned.
func (f *Fetcher) Do(req *http.Request) (*http.Response, error) {
	resp, err := f.send(req, req.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	// a consumed body without GetBody cannot be replayed
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	refreshErr := f.session.Refresh(req.Context())
	if errors.Is(refreshErr, session.ErrNoRefreshToken) {
		return resp, nil
	}
	discard(resp)

	if refreshErr != nil {
		var apiErr *APIError
		if errors.As(refreshErr, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", ErrReauthRequired, apiErr.Message)
		}
		return nil, fmt.Errorf("refresh session: %w", refreshErr)
	}

	var body io.ReadCloser
	if req.GetBody != nil {
		body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
	}
	return f.send(req, body)
}

// Get is Do for a body-less GET that decodes a JSON answer into out.
func (f *Fetcher) Get(ctx context.Context, path string, out any) error {
	req, err := f.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := f.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (f *Fetcher) send(req *http.Request, body io.ReadCloser) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	attempt.Body = body
	if token := f.session.AccessToken(); token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	} else {
		attempt.Header.Del("Authorization")
	}

	resp, err := f.httpClient.Do(attempt)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
