package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/domain"
	"docdesk/internal/secret"
	"docdesk/internal/service"
)

type fakeAuth struct {
	mu        sync.Mutex
	token     string
	loginErr  error
	valid     bool
	healthErr error
	probes    int
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeAuth) Register(_ context.Context, username, email, password string) (string, error) {
	return f.token, nil
}

func (f *fakeAuth) CheckSession(_ context.Context, token string) (bool, error) {
	return f.valid && token == f.token, nil
}

func (f *fakeAuth) Me(context.Context) (*domain.User, error) {
	return &domain.User{ID: "u1", Username: "ana"}, nil
}

func (f *fakeAuth) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.healthErr
}

func (f *fakeAuth) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

var clock = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "ana",
		"exp":      exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func newSession(auth *fakeAuth, store secret.SecretStore) (*service.SessionService, *service.MockEmitter) {
	em := &service.MockEmitter{}
	s := service.NewSessionService(auth, store, em, nil)
	s.SetClock(func() time.Time { return clock })
	return s, em
}

func TestSession_LoginStoresToken(t *testing.T) {
	auth := &fakeAuth{token: signed(t, clock.Add(time.Hour)), valid: true}
	store := secret.NewMemoryStore()
	s, em := newSession(auth, store)

	user, err := s.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, auth.token, s.Token())
	assert.Equal(t, "ana", s.Current().Subject)

	saved, err := store.Get(secret.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, auth.token, string(saved))
	assert.NotEmpty(t, em.Named(service.EventSessionChanged))

	ok, err := s.CheckSession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSession_LoginFailureToasts(t *testing.T) {
	s, em := newSession(&fakeAuth{loginErr: errors.New("Invalid credentials")}, nil)

	_, err := s.Login(context.Background(), "ana", "bad")
	require.Error(t, err)
	assert.Empty(t, s.Token())
	require.Len(t, em.Toasts(), 1)
	assert.Equal(t, "Login failed", em.Toasts()[0].Title)
	assert.Equal(t, domain.ToastDestructive, em.Toasts()[0].Variant)
}

func TestSession_RestoreDropsExpiredToken(t *testing.T) {
	store := secret.NewMemoryStore()
	require.NoError(t, store.Set(secret.TokenKey, []byte(signed(t, clock.Add(-time.Minute)))))
	s, _ := newSession(&fakeAuth{}, store)

	ok, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	saved, _ := store.Get(secret.TokenKey)
	assert.Empty(t, saved)
	assert.Empty(t, s.Token())
}

func TestSession_RestoreValidToken(t *testing.T) {
	token := signed(t, clock.Add(time.Hour))
	store := secret.NewMemoryStore()
	require.NoError(t, store.Set(secret.TokenKey, []byte(token)))
	s, _ := newSession(&fakeAuth{}, store)

	ok, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, token, s.Token())
}

func TestSession_TokenExpiresInMemory(t *testing.T) {
	auth := &fakeAuth{token: signed(t, clock.Add(time.Minute))}
	s, _ := newSession(auth, nil)
	_, err := s.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)

	s.SetClock(func() time.Time { return clock.Add(2 * time.Minute) })
	assert.Empty(t, s.Token())

	_, err = s.Me(context.Background())
	assert.ErrorIs(t, err, service.ErrNotLoggedIn)
}

func TestSession_CheckSessionLogsOutWhenRejected(t *testing.T) {
	auth := &fakeAuth{token: signed(t, clock.Add(time.Hour)), valid: false}
	store := secret.NewMemoryStore()
	s, _ := newSession(auth, store)
	_, err := s.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)

	ok, err := s.CheckSession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s.Token())
	saved, _ := store.Get(secret.TokenKey)
	assert.Empty(t, saved)
}

func TestSession_ProbeHealth(t *testing.T) {
	auth := &fakeAuth{}
	s, em := newSession(auth, nil)

	st := s.ProbeHealth(context.Background())
	assert.True(t, st.Online)

	auth.healthErr = errors.New("connection refused")
	st = s.ProbeHealth(context.Background())
	assert.False(t, st.Online)
	assert.Equal(t, "connection refused", st.Error)
	assert.Equal(t, st, s.Status())
	assert.Len(t, em.Named(service.EventConnectionStatus), 2)
}

func TestSession_HealthProbeSchedule(t *testing.T) {
	auth := &fakeAuth{}
	s, _ := newSession(auth, nil)

	require.Error(t, s.StartHealthProbe(context.Background(), "every now and then"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.StartHealthProbe(ctx, "@every 1s"))
	assert.Eventually(t, func() bool { return auth.probeCount() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.StopHealthProbe()

	n := auth.probeCount()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, auth.probeCount())
}
