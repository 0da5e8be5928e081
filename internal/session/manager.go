package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rescuelog/backend/internal/model"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds the shared refresh round-trip, which no single caller's ctx owns.
const refreshTimeout = 30 * time.Second

// ErrNoRefreshToken means Refresh found nothing to refresh with and did nothing.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Refresher exchanges a refresh token for a new access token.
// *client.AuthClient implements it.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*model.RefreshResponse, error)
}

// Gate is the user-presence check run before a remembered session is resumed,
// typically a device biometric prompt.
type Gate func(ctx context.Context) (bool, error)

// Manager owns the authenticated state of one running client. Durable storage
// is the source of truth; the access token is cached in memory.
type Manager struct {
	store     Store
	refresher Refresher
	logger    *slog.Logger

	mu          sync.RWMutex
	accessToken string

	refreshGroup   singleflight.Group
	refreshTimeout time.Duration
}

func NewManager(store Store, refresher Refresher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, refresher: refresher, logger: logger, refreshTimeout: refreshTimeout}
}

// Load fills the in-memory cache from durable storage. Call once at startup.
func (m *Manager) Load(ctx context.Context) error {
	token, _, err := m.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return fmt.Errorf("load access token: %w", err)
	}
	m.setAccessToken(token)
	return nil
}

// Login persists both tokens. The remember-me flag is written only when remember is true.
func (m *Manager) Login(ctx context.Context, accessToken, refreshToken string, remember bool) error {
	if err := m.store.Set(ctx, KeyAuthToken, accessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if err := m.store.Set(ctx, KeyRefreshToken, refreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if remember {
		if err := m.store.Set(ctx, KeyRememberMe, "true"); err != nil {
			return fmt.Errorf("store remember flag: %w", err)
		}
	}
	m.setAccessToken(accessToken)
	return nil
}

// Logout deletes every durable entry and clears the cache. The cache is cleared
// even when a delete fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.setAccessToken("")

	var errs []error
	for _, key := range []string{KeyAuthToken, KeyRefreshToken, KeyRememberMe} {
		if err := m.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Refresh trades the stored refresh token for a new access token. Concurrent
// callers share one round-trip that runs detached from any caller's ctx, so a
// caller giving up only stops its own wait. Any failure of the round-trip other
// than ErrNoRefreshToken ends the session.
func (m *Manager) Refresh(ctx context.Context) error {
	flightCtx := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(flightCtx, m.refreshTimeout)
		defer cancel()
		return nil, m.refresh(fctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) error {
	refreshToken, ok, err := m.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("read refresh token: %w", err)
	}
	if !ok || refreshToken == "" {
		return ErrNoRefreshToken
	}

	resp, err := m.refresher.RefreshAccessToken(ctx, refreshToken)
	if err == nil && resp.AccessToken == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		m.logger.WarnContext(ctx, "token refresh failed, ending session", slog.Any("error", err))
		// The refresh may have failed because ctx ended; the teardown must still reach storage.
		if lerr := m.Logout(context.WithoutCancel(ctx)); lerr != nil {
			return errors.Join(err, lerr)
		}
		return err
	}

	if err := m.store.Set(ctx, KeyAuthToken, resp.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if resp.RefreshToken != "" {
		if err := m.store.Set(ctx, KeyRefreshToken, resp.RefreshToken); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
	}
	m.setAccessToken(resp.AccessToken)
	return nil
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

func (m *Manager) IsAuthenticated() bool {
	return m.AccessToken() != ""
}

func (m *Manager) RememberMe(ctx context.Context) (bool, error) {
	_, ok, err := m.store.Get(ctx, KeyRememberMe)
	return ok, err
}

// Resume re-enters a remembered session after gate approves. It reports false
// without touching state when there is nothing to resume or the gate declines.
func (m *Manager) Resume(ctx context.Context, gate Gate) (bool, error) {
	remember, err := m.RememberMe(ctx)
	if err != nil || !remember {
		return false, err
	}
	access, ok, err := m.store.Get(ctx, KeyAuthToken)
	if err != nil || !ok {
		return false, err
	}
	refresh, ok, err := m.store.Get(ctx, KeyRefreshToken)
	if err != nil || !ok {
		return false, err
	}

	approved, err := gate(ctx)
	if err != nil || !approved {
		return false, err
	}
	if err := m.Login(ctx, access, refresh, true); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) setAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = token
}
