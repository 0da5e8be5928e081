package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rescuelog/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	failNext error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[uuid.UUID]*model.Account{}}
}

func (m *memAccounts) byPhone(phone string) *model.Account {
	for _, a := range m.accounts {
		if a.Phone == phone {
			return a
		}
	}
	return nil
}

func (m *memAccounts) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memAccounts) CreateAccount(ctx context.Context, acct *model.Account) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	if m.byPhone(acct.Phone) != nil {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	cp := *acct
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.accounts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memAccounts) GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	a := m.byPhone(phone)
	if a == nil {
		return nil, pgx.ErrNoRows
	}
	out := *a
	return &out, nil
}

func (m *memAccounts) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *a
	return &out, nil
}

func (m *memAccounts) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	a.FailedLoginAttempts++
	return a.FailedLoginAttempts, nil
}

func (m *memAccounts) SetLockUntil(ctx context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.LockUntil = &until
	return nil
}

func (m *memAccounts) ResetLoginAttempts(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.FailedLoginAttempts = 0
	a.LockUntil = nil
	return nil
}

func (m *memAccounts) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.RefreshTokenHash = tokenHash
	return nil
}

func (m *memAccounts) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.PasswordHash = passwordHash
	a.RefreshTokenHash = ""
	return nil
}

func (m *memAccounts) DeleteAccountByPhone(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.byPhone(phone); a != nil {
		delete(m.accounts, a.ID)
	}
	return nil
}

func (m *memAccounts) snapshot(phone string) model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byPhone(phone)
	if a == nil {
		return model.Account{}
	}
	return *a
}

type testEnv struct {
	svc    *AuthService
	repo   *memAccounts
	clock  *fakeClock
	tokens *TokenIssuer
}

func newTestEnv(t *testing.T, opts AuthOptions) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	tokens, err := NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour, clock)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	lockout, err := NewLockoutPolicy(5, 10*time.Minute, "UTC")
	if err != nil {
		t.Fatalf("lockout: %v", err)
	}
	repo := newMemAccounts()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		svc:    NewAuthService(repo, hasher, tokens, lockout, clock, logger, opts),
		repo:   repo,
		clock:  clock,
		tokens: tokens,
	}
}

func (e *testEnv) signup(t *testing.T, phone, password string) *Session {
	t.Helper()
	sess, err := e.svc.Signup(context.Background(), model.SignupRequest{
		FullName: "Test User",
		Phone:    phone,
		Password: password,
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return sess
}
