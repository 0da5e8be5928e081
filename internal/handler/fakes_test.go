package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rescuelog/backend/internal/model"
	"github.com/rescuelog/backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fixedClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixedClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	err      error
}

func (m *memAccounts) find(phone string) *model.Account {
	for _, a := range m.accounts {
		if a.Phone == phone {
			return a
		}
	}
	return nil
}

func (m *memAccounts) get(id uuid.UUID) (*model.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memAccounts) CreateAccount(ctx context.Context, acct *model.Account) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.find(acct.Phone) != nil {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	cp := *acct
	m.accounts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memAccounts) GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a := m.find(phone)
	if a == nil {
		return nil, pgx.ErrNoRows
	}
	out := *a
	return &out, nil
}

func (m *memAccounts) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return nil, err
	}
	out := *a
	return &out, nil
}

func (m *memAccounts) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return 0, err
	}
	a.FailedLoginAttempts++
	return a.FailedLoginAttempts, nil
}

func (m *memAccounts) SetLockUntil(ctx context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	a.LockUntil = &until
	return nil
}

func (m *memAccounts) ResetLoginAttempts(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	a.FailedLoginAttempts = 0
	a.LockUntil = nil
	return nil
}

func (m *memAccounts) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	a.RefreshTokenHash = tokenHash
	return nil
}

func (m *memAccounts) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(id)
	if err != nil {
		return err
	}
	a.PasswordHash = passwordHash
	a.RefreshTokenHash = ""
	return nil
}

func (m *memAccounts) DeleteAccountByPhone(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if a := m.find(phone); a != nil {
		delete(m.accounts, a.ID)
	}
	return nil
}

func (m *memAccounts) setRole(phone string, role model.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.find(phone).Role = role
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *memAccounts) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type memGuides struct {
	guides []model.FirstAidGuide
	err    error
}

func (m *memGuides) SearchFirstAidGuides(ctx context.Context, search string) ([]model.FirstAidGuide, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []model.FirstAidGuide{}
	for _, g := range m.guides {
		if strings.Contains(strings.ToLower(g.Condition), strings.ToLower(search)) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGuides) GetFirstAidGuide(ctx context.Context, condition string) (*model.FirstAidGuide, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, g := range m.guides {
		if strings.EqualFold(g.Condition, condition) {
			out := g
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type testServer struct {
	router *gin.Engine
	repo   *memAccounts
	guides *memGuides
	clock  *fixedClock
	health *Health
}

func newTestServer(t *testing.T, rotate bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &fixedClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	hasher, err := service.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	tokens, err := service.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour, clock)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	lockout, err := service.NewLockoutPolicy(5, 10*time.Minute, "UTC")
	if err != nil {
		t.Fatalf("lockout: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memAccounts{accounts: map[uuid.UUID]*model.Account{}}
	guides := &memGuides{}
	health := NewHealth(true, nil)

	authSvc := service.NewAuthService(repo, hasher, tokens, lockout, clock, logger, service.AuthOptions{RotateRefreshOnUse: rotate})
	router := NewRouter(RouterConfig{
		ServiceName:      "rescuelog-test",
		AllowedOrigins:   []string{"http://localhost:8081"},
		EnableTestRoutes: true,
	}, RouterDeps{
		Auth:     authSvc,
		FirstAid: service.NewFirstAidService(guides),
		Health:   health,
		Logger:   logger,
	})

	return &testServer{router: router, repo: repo, guides: guides, clock: clock, health: health}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) signup(t *testing.T, phone string) model.AuthResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/signup", model.SignupRequest{
		FullName: "Test User",
		Phone:    phone,
		Password: "Test@123",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.AuthResponse
	decode(t, w, &resp)
	return resp
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	decode(t, w, &resp)
	return resp.Message
}
