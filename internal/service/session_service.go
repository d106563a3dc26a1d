package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"docdesk/internal/api"
	"docdesk/internal/domain"
	"docdesk/internal/secret"
)

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("not logged in")

// AuthAPI is the slice of the API client the session service drives.
type AuthAPI interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	Register(ctx context.Context, username, email, password string) (string, error)
	CheckSession(ctx context.Context, token string) (bool, error)
	Me(ctx context.Context) (*domain.User, error)
	Health(ctx context.Context) error
}

// SessionService holds the bearer token, persists it in the secret store
// and runs the periodic connectivity probe. It is the api.TokenSource the
// client reads on every call.
type SessionService struct {
	api     AuthAPI
	secrets secret.SecretStore
	emitter EventEmitter
	log     *zap.SugaredLogger
	now     func() time.Time

	mu      sync.RWMutex
	session domain.Session
	user    *domain.User
	status  domain.ConnectionStatus

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewSessionService creates a SessionService.
func NewSessionService(authAPI AuthAPI, secrets secret.SecretStore, emitter EventEmitter, log *zap.SugaredLogger) *SessionService {
	if secrets == nil {
		secrets = secret.NewMemoryStore()
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SessionService{api: authAPI, secrets: secrets, emitter: emitter, log: log, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *SessionService) SetClock(now func() time.Time) { s.now = now }

// Token implements api.TokenSource. An expired session yields "".
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.Token == "" || s.session.Expired(s.now()) {
		return ""
	}
	return s.session.Token
}

// Current returns the session held in memory.
func (s *SessionService) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// User returns the last user fetched by Me, if any.
func (s *SessionService) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Restore loads a token saved by an earlier run. Expired tokens are
// deleted and reported as no session.
func (s *SessionService) Restore(ctx context.Context) (bool, error) {
	token, err := secret.LoadToken(s.secrets)
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return false, nil
	}
	sess := api.InspectToken(token, s.now())
	if sess.Expired(s.now()) {
		s.log.Infow("[AUTH] stored token expired", "subject", sess.Subject)
		return false, secret.ClearToken(s.secrets)
	}
	s.setSession(ctx, sess, nil)
	return true, nil
}

// Login exchanges credentials for a token and fetches the user behind it.
func (s *SessionService) Login(ctx context.Context, identifier, password string) (*domain.User, error) {
	token, err := s.api.Login(ctx, identifier, password)
	if err != nil {
		toast(ctx, s.emitter, "Login failed", err.Error(), domain.ToastDestructive)
		return nil, err
	}
	return s.adopt(ctx, token)
}

// Register creates an account and logs into it.
func (s *SessionService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	token, err := s.api.Register(ctx, username, email, password)
	if err != nil {
		toast(ctx, s.emitter, "Registration failed", err.Error(), domain.ToastDestructive)
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	return s.adopt(ctx, token)
}

func (s *SessionService) adopt(ctx context.Context, token string) (*domain.User, error) {
	if err := secret.SaveToken(s.secrets, token); err != nil {
		s.log.Warnw("[AUTH] token not persisted", "error", err)
	}
	s.setSession(ctx, api.InspectToken(token, s.now()), nil)

	user, err := s.api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	s.setSession(ctx, s.Current(), user)
	s.log.Infow("[AUTH] logged in", "user", user.Username)
	return user, nil
}

// Me refreshes the current user.
func (s *SessionService) Me(ctx context.Context) (*domain.User, error) {
	if s.Token() == "" {
		return nil, ErrNotLoggedIn
	}
	user, err := s.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

// CheckSession asks the server whether the held token is still valid and
// logs out when it is not.
func (s *SessionService) CheckSession(ctx context.Context) (bool, error) {
	token := s.Token()
	if token == "" {
		return false, nil
	}
	valid, err := s.api.CheckSession(ctx, token)
	if err != nil {
		return false, err
	}
	if !valid {
		s.log.Infow("[AUTH] server rejected session")
		return false, s.Logout(ctx)
	}
	return true, nil
}

// Logout forgets the token in memory and in the secret store.
func (s *SessionService) Logout(ctx context.Context) error {
	s.setSession(ctx, domain.Session{}, nil)
	return secret.ClearToken(s.secrets)
}

func (s *SessionService) setSession(ctx context.Context, sess domain.Session, user *domain.User) {
	s.mu.Lock()
	s.session = sess
	s.user = user
	s.mu.Unlock()
	s.emitter.Emit(ctx, EventSessionChanged, map[string]any{
		"loggedIn":  sess.Token != "",
		"subject":   sess.Subject,
		"expiresAt": sess.ExpiresAt,
		"user":      user,
	})
}

// ── Health probe ───────────────────────────────────────────

// ProbeHealth checks the API once and emits the result.
func (s *SessionService) ProbeHealth(ctx context.Context) domain.ConnectionStatus {
	st := domain.ConnectionStatus{Online: true, CheckedAt: s.now()}
	if err := s.api.Health(ctx); err != nil {
		st.Online = false
		st.Error = err.Error()
	}

	s.mu.Lock()
	changed := s.status.CheckedAt.IsZero() || s.status.Online != st.Online
	s.status = st
	s.mu.Unlock()

	if changed {
		s.log.Infow("[HEALTH] connection status", "online", st.Online, "error", st.Error)
	}
	s.emitter.Emit(ctx, EventConnectionStatus, st)
	return st
}

// Status returns the last probe result.
func (s *SessionService) Status() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// StartHealthProbe runs ProbeHealth on a cron schedule such as "@every 30s"
// until StopHealthProbe or ctx is done. A running probe is replaced.
func (s *SessionService) StartHealthProbe(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { s.ProbeHealth(ctx) }); err != nil {
		return fmt.Errorf("health schedule %q: %w", schedule, err)
	}

	s.StopHealthProbe()
	s.cronMu.Lock()
	s.cron = c
	s.cronMu.Unlock()
	c.Start()

	go func() {
		<-ctx.Done()
		s.StopHealthProbe()
	}()
	return nil
}

// StopHealthProbe stops the schedule and waits for a running probe.
func (s *SessionService) StopHealthProbe() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

var _ api.TokenSource = (*SessionService)(nil)
