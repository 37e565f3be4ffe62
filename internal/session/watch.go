package session

import (
	"context"
	"fmt"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

const reasonSignedOutElsewhere = "signed out in another tab"

// Watch subscribes to token changes made by other tabs. It returns once the
// subscription is live; events are handled in the background until ctx is done
// or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.stopWatch != nil {
		return ErrWatching
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := m.store.Subscribe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to store: %w", err)
	}
	m.stopWatch = cancel

	m.watchWG.Add(1)
	go func() {
		defer m.watchWG.Done()
		for ev := range events {
			m.HandleChange(ctx, ev)
		}
	}()
	return nil
}

// HandleChange applies a change made to the persisted store by another tab.
func (m *Manager) HandleChange(ctx context.Context, ev storage.ChangeEvent) {
	if ev.Key != storage.TokenKey {
		return
	}

	if ev.Deleted || ev.Value == "" {
		m.mu.Lock()
		wasSignedIn := m.session.Authenticated || m.session.Token != ""
		m.session = d.Session{}
		m.mu.Unlock()
		if wasSignedIn {
			m.logger.InfoContext(ctx, "token removed in another tab")
			m.requireLogin(reasonSignedOutElsewhere)
		}
		return
	}

	m.mu.RLock()
	same := m.session.Authenticated && m.session.Token == ev.Value
	m.mu.RUnlock()
	if same {
		return
	}
	m.revalidate(ctx, ev.Value)
}

// revalidate adopts a token written by another tab once the server confirms it.
func (m *Manager) revalidate(ctx context.Context, token string) {
	user, err := m.lookupIdentity(ctx, token)
	switch {
	case err == nil:
		m.mu.Lock()
		m.session = d.Session{Token: token, User: user, Authenticated: true}
		m.loginRequired = false
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "session adopted from another tab", "user_id", user.ID)
	case isAuthRejection(err):
		m.setSession(d.Session{})
		m.logger.InfoContext(ctx, "token from another tab rejected", "error", err)
	default:
		m.mu.Lock()
		m.session.Token = token
		m.mu.Unlock()
		m.logger.WarnContext(ctx, "could not confirm token from another tab", "error", err)
	}
}

// Close stops the watcher started by Watch.
func (m *Manager) Close() {
	m.watchMu.Lock()
	stop := m.stopWatch
	m.stopWatch = nil
	m.watchMu.Unlock()

	if stop != nil {
		stop()
	}
	m.watchWG.Wait()
}
