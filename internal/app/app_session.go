package app

import (
	"docdesk/internal/domain"
)

// ============================================================
// Session
// ============================================================

// SessionView is what the frontend needs to render the account menu.
type SessionView struct {
	LoggedIn bool           `json:"loggedIn"`
	Session  domain.Session `json:"session"`
	User     *domain.User   `json:"user,omitempty"`
}

func (a *App) sessionView() SessionView {
	s := a.core.Session
	return SessionView{
		LoggedIn: s.Token() != "",
		Session:  s.Current(),
		User:     s.User(),
	}
}

// Login signs in and reloads the collection list for the new account.
func (a *App) Login(identifier, password string) (SessionView, error) {
	if _, err := a.core.Session.Login(a.ctx, identifier, password); err != nil {
		return a.sessionView(), err
	}
	a.reloadCollections()
	return a.sessionView(), nil
}

func (a *App) Register(username, email, password string) (SessionView, error) {
	if _, err := a.core.Session.Register(a.ctx, username, email, password); err != nil {
		return a.sessionView(), err
	}
	a.reloadCollections()
	return a.sessionView(), nil
}

func (a *App) Logout() (SessionView, error) {
	err := a.core.Session.Logout(a.ctx)
	return a.sessionView(), err
}

// CurrentSession returns the session without calling the server.
func (a *App) CurrentSession() SessionView {
	return a.sessionView()
}

// CheckSession asks the server whether the token is still valid; an
// invalid token signs the console out.
func (a *App) CheckSession() (SessionView, error) {
	_, err := a.core.Session.CheckSession(a.ctx)
	return a.sessionView(), err
}

// ── Connectivity ───────────────────────────────────────────

func (a *App) ConnectionStatus() domain.ConnectionStatus {
	return a.core.Session.Status()
}

// CheckConnection probes the API now instead of waiting for the schedule.
func (a *App) CheckConnection() domain.ConnectionStatus {
	return a.core.Session.ProbeHealth(a.ctx)
}

func (a *App) reloadCollections() {
	go func() {
		if err := a.grid.LoadCollections(a.ctx); err != nil {
			a.log.Warnw("[APP] collection reload failed", "error", err)
		}
	}()
}
