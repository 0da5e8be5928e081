// RescueLog API 인증 엔드포인트와 HTTP 통신하는 클라이언트 정의
//
// 환경변수:
//   - API_BASE_URL: API 서버 URL (예: http://localhost:5000)
//   - CLIENT_TIMEOUT: signup/login 요청 제한 시간 (기본 10s)
//
// refresh 요청에는 별도 제한 시간을 두지 않고 호출자의 context를 따름

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
	"time"

	"github.com/rescuelog/backend/internal/config"
	"github.com/rescuelog/backend/internal/model"
)

// AuthClient 구조체 정의
type AuthClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// AuthClient 객체 생성
func NewAuthClient(cfg config.ClientConfig, httpClient *http.Client) *AuthClient {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &AuthClient{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (c *AuthClient) BaseURL() string {
	return c.baseURL
}

// POST /api/auth/signup - 폼 검증 통과 후에만 요청
func (c *AuthClient) Signup(ctx context.Context, form SignupForm) (*model.AuthResponse, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp model.AuthResponse
	err := c.postJSON(ctx, "/api/auth/signup", "", model.SignupRequest{
		FullName: strings.TrimSpace(form.FullName),
		Phone:    strings.TrimSpace(form.Phone),
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// POST /api/auth/login
func (c *AuthClient) Login(ctx context.Context, form LoginForm) (*model.AuthResponse, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp model.AuthResponse
	err := c.postJSON(ctx, "/api/auth/login", "", model.LoginRequest{
		Phone:    strings.TrimSpace(form.Phone),
		Password: form.Password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// POST /api/auth/refresh-token - session.Refresher 구현
func (c *AuthClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*model.RefreshResponse, error) {
	var resp model.RefreshResponse
	if err := c.postJSON(ctx, "/api/auth/refresh-token", "", model.RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// POST /api/auth/logout - 서버 쪽 refresh 슬롯 비우기
func (c *AuthClient) Logout(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp model.MessageResponse
	return c.postJSON(ctx, "/api/auth/logout", accessToken, nil, &resp)
}

func (c *AuthClient) postJSON(ctx context.Context, path, bearer string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse turns non-2xx answers into *APIError and decodes the rest into out.
func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr model.ErrorResponse
		_ = json.Unmarshal(raw, &apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
