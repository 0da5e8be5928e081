package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rescuelog/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	calls   atomic.Int32
	resp    *model.RefreshResponse
	err     error
	release chan struct{}
	waitCtx bool
	lastTok string
	mu      sync.Mutex
}

func (s *stubRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (*model.RefreshResponse, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastTok = refreshToken
	s.mu.Unlock()
	if s.waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newManager(r Refresher) (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return NewManager(store, r, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(&stubRefresher{})

	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", true))
	assert.Equal(t, "access-1", m.AccessToken())
	assert.True(t, m.IsAuthenticated())

	for key, want := range map[string]string{
		KeyAuthToken:    "access-1",
		KeyRefreshToken: "refresh-1",
		KeyRememberMe:   "true",
	} {
		got, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
		assert.Equal(t, want, got)
	}

	require.NoError(t, m.Logout(ctx))
	assert.False(t, m.IsAuthenticated())
	for _, key := range []string{KeyAuthToken, KeyRefreshToken, KeyRememberMe} {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestLoginWithoutRememberLeavesFlagUnset(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(&stubRefresher{})

	require.NoError(t, m.Login(ctx, "a", "r", false))
	_, ok, _ := store.Get(ctx, KeyRememberMe)
	assert.False(t, ok)

	remember, err := m.RememberMe(ctx)
	require.NoError(t, err)
	assert.False(t, remember)
}

func TestLoadPopulatesCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyAuthToken, "persisted"))

	m := NewManager(store, &stubRefresher{}, nil)
	assert.False(t, m.IsAuthenticated())
	require.NoError(t, m.Load(ctx))
	assert.Equal(t, "persisted", m.AccessToken())
}

func TestRefreshWithoutTokenIsNoop(t *testing.T) {
	r := &stubRefresher{}
	m, _ := newManager(r)

	err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestRefreshStoresNewAccessToken(t *testing.T) {
	ctx := context.Background()
	r := &stubRefresher{resp: &model.RefreshResponse{AccessToken: "access-2"}}
	m, store := newManager(r)
	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", false))

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, "access-2", m.AccessToken())
	assert.Equal(t, "refresh-1", r.lastTok)

	got, _, _ := store.Get(ctx, KeyAuthToken)
	assert.Equal(t, "access-2", got)
	got, _, _ = store.Get(ctx, KeyRefreshToken)
	assert.Equal(t, "refresh-1", got)
}

func TestRefreshPersistsRotatedRefreshToken(t *testing.T) {
	ctx := context.Background()
	r := &stubRefresher{resp: &model.RefreshResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}}
	m, store := newManager(r)
	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", false))

	require.NoError(t, m.Refresh(ctx))
	got, _, _ := store.Get(ctx, KeyRefreshToken)
	assert.Equal(t, "refresh-2", got)
}

func TestRefreshFailureLogsOut(t *testing.T) {
	ctx := context.Background()
	rejected := errors.New("403 Token does not match latest login")
	m, store := newManager(&stubRefresher{err: rejected})
	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", true))

	err := m.Refresh(ctx)
	require.ErrorIs(t, err, rejected)
	assert.False(t, m.IsAuthenticated())
	for _, key := range []string{KeyAuthToken, KeyRefreshToken, KeyRememberMe} {
		_, ok, _ := store.Get(ctx, key)
		assert.False(t, ok, key)
	}
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	ctx := context.Background()
	r := &stubRefresher{
		resp:    &model.RefreshResponse{AccessToken: "access-2"},
		release: make(chan struct{}),
	}
	m, _ := newManager(r)
	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", false))

	const callers = 8
	var (
		wg      sync.WaitGroup
		entered atomic.Int32
	)
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entered.Add(1)
			errs <- m.Refresh(ctx)
		}()
	}

	// the first round-trip is held open until every caller is waiting on it
	require.Eventually(t, func() bool {
		return entered.Load() == callers && r.calls.Load() == 1
	}, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(r.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, "access-2", m.AccessToken())
}

func TestCancelledCallerLeavesSharedRefreshRunning(t *testing.T) {
	ctx := context.Background()
	r := &stubRefresher{
		resp:    &model.RefreshResponse{AccessToken: "access-2"},
		release: make(chan struct{}),
	}
	m, store := newManager(r)
	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", true))

	impatient, cancel := context.WithCancel(ctx)
	impatientErr := make(chan error, 1)
	go func() { impatientErr <- m.Refresh(impatient) }()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)

	patientErr := make(chan error, 1)
	go func() { patientErr <- m.Refresh(ctx) }()

	cancel()
	require.ErrorIs(t, <-impatientErr, context.Canceled)

	close(r.release)
	require.NoError(t, <-patientErr)
	assert.Equal(t, "access-2", m.AccessToken())

	got, ok, err := store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "refresh-1", got)
}

func TestRefreshTimeoutClearsDurableStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := openTestStore(t, dir)

	m := NewManager(store, &stubRefresher{waitCtx: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.refreshTimeout = 20 * time.Millisecond
	require.NoError(t, m.Login(ctx, "access", "refresh", true))

	err := m.Refresh(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, m.IsAuthenticated())

	for _, key := range []string{KeyAuthToken, KeyRefreshToken, KeyRememberMe} {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	restarted := NewManager(openTestStore(t, dir), &stubRefresher{}, nil)
	require.NoError(t, restarted.Load(ctx))
	assert.False(t, restarted.IsAuthenticated())
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	approve := func(context.Context) (bool, error) { return true, nil }
	decline := func(context.Context) (bool, error) { return false, nil }

	m, store := newManager(&stubRefresher{})
	ok, err := m.Resume(ctx, approve)
	require.NoError(t, err)
	assert.False(t, ok, "nothing stored")

	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", false))
	ok, err = m.Resume(ctx, approve)
	require.NoError(t, err)
	assert.False(t, ok, "remember-me not set")

	require.NoError(t, store.Set(ctx, KeyRememberMe, "true"))

	restarted := NewManager(store, &stubRefresher{}, nil)
	ok, err = restarted.Resume(ctx, decline)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, restarted.IsAuthenticated())

	ok, err = restarted.Resume(ctx, approve)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access-1", restarted.AccessToken())
}
