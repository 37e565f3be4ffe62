package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

// AuthService is the identity backend the manager talks to.
type AuthService interface {
	Login(ctx context.Context, creds d.Credentials) (string, *d.User, error)
	Register(ctx context.Context, profile d.RegistrationProfile) (string, *d.User, error)
	Logout(ctx context.Context) error
	Identity(ctx context.Context) (*d.User, error)
}

type Config struct {
	// RetainOnNetworkError keeps the persisted token when the identity lookup
	// fails without an answer from the server. Only an explicit 401/403 logs out.
	RetainOnNetworkError bool
	// OnLoginRequired is called whenever the user must be sent to the login screen.
	OnLoginRequired func(reason string)
}

// View is what the UI observes.
type View struct {
	User          *d.User `json:"user"`
	Authenticated bool    `json:"authenticated"`
	Loading       bool    `json:"loading"`
	LoginRequired bool    `json:"loginRequired"`
}

// Manager owns the session of one tab. It is the only writer of the persisted
// token key from this tab.
type Manager struct {
	store  storage.Store
	auth   AuthService
	cfg    Config
	logger *slog.Logger

	identity singleflight.Group

	mu            sync.RWMutex
	session       d.Session
	loading       bool
	loginRequired bool

	watchMu   sync.Mutex
	stopWatch context.CancelFunc
	watchWG   sync.WaitGroup
}

func NewManager(store storage.Store, auth AuthService, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		store:  store,
		auth:   auth,
		cfg:    cfg,
		logger: log,
	}
}

// Initialize rehydrates the session from the persisted token. A non-nil error means
// the identity could not be confirmed and the token was retained.
func (m *Manager) Initialize(ctx context.Context) error {
	m.setLoading(true)
	defer m.setLoading(false)

	token, err := storage.LoadToken(ctx, m.store)
	if err != nil {
		return err
	}
	if token == "" {
		m.setSession(d.Session{})
		return nil
	}

	user, err := m.lookupIdentity(ctx, token)
	if err == nil {
		m.setSession(d.Session{Token: token, User: user, Authenticated: true})
		m.logger.InfoContext(ctx, "session restored", "user_id", user.ID)
		return nil
	}

	if isAuthRejection(err) || !m.cfg.RetainOnNetworkError {
		m.logger.InfoContext(ctx, "persisted session rejected", "error", err)
		m.clearLocal(ctx)
		return nil
	}

	m.mu.Lock()
	m.session.Token = token
	m.mu.Unlock()
	m.logger.WarnContext(ctx, "identity unconfirmed, keeping session", "error", err)
	return fmt.Errorf("identity lookup failed: %w", err)
}

func (m *Manager) Login(ctx context.Context, creds d.Credentials) (*d.User, error) {
	return m.authenticate(ctx, func() (string, error) {
		token, _, err := m.auth.Login(ctx, creds)
		return token, err
	})
}

func (m *Manager) Register(ctx context.Context, profile d.RegistrationProfile) (*d.User, error) {
	return m.authenticate(ctx, func() (string, error) {
		token, _, err := m.auth.Register(ctx, profile)
		return token, err
	})
}

func (m *Manager) authenticate(ctx context.Context, issue func() (string, error)) (*d.User, error) {
	m.setLoading(true)
	defer m.setLoading(false)

	token, err := issue()
	if err != nil {
		m.clearLocal(ctx)
		return nil, authFailure(err)
	}
	if err := storage.SaveToken(ctx, m.store, token); err != nil {
		m.clearLocal(ctx)
		return nil, authFailure(err)
	}

	// the server's own view of the user wins over whatever login returned
	user, err := m.lookupIdentity(ctx, token)
	if err != nil {
		m.clearLocal(ctx)
		return nil, authFailure(err)
	}

	m.mu.Lock()
	m.session = d.Session{Token: token, User: user, Authenticated: true}
	m.loginRequired = false
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "user signed in", "user_id", user.ID)
	return cloneUser(user), nil
}

// Logout never fails: server-side invalidation is best effort and local state is
// always cleared.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.auth.Logout(ctx); err != nil {
		m.logger.WarnContext(ctx, "server logout failed", "error", err)
	}
	m.clearLocal(ctx)
}

// Expire drops a session the server no longer accepts and asks for a new login.
func (m *Manager) Expire(ctx context.Context, reason string) {
	m.clearLocal(ctx)
	m.requireLogin(reason)
}

func (m *Manager) Snapshot() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return View{
		User:          cloneUser(m.session.User),
		Authenticated: m.session.Authenticated,
		Loading:       m.loading,
		LoginRequired: m.loginRequired,
	}
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Authenticated
}

func (m *Manager) User() *d.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneUser(m.session.User)
}

func (m *Manager) lookupIdentity(ctx context.Context, token string) (*d.User, error) {
	v, err, _ := m.identity.Do("identity:"+token, func() (interface{}, error) {
		return m.auth.Identity(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*d.User), nil
}

func (m *Manager) clearLocal(ctx context.Context) {
	if err := storage.ClearToken(ctx, m.store); err != nil {
		m.logger.WarnContext(ctx, "failed to clear persisted token", "error", err)
	}
	m.setSession(d.Session{})
}

func (m *Manager) setSession(s d.Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

func (m *Manager) requireLogin(reason string) {
	m.mu.Lock()
	m.loginRequired = true
	m.mu.Unlock()
	if m.cfg.OnLoginRequired != nil {
		m.cfg.OnLoginRequired(reason)
	}
}

// isAuthRejection reports an explicit 401/403 from the server.
func isAuthRejection(err error) bool {
	return errors.Is(err, d.ErrAuthentication) || errors.Is(err, d.ErrAuthorization)
}

// authFailure normalizes any login/register failure into an authentication error
// while keeping the server's message for the user.
func authFailure(err error) error {
	code := d.CodeInvalidCredentials
	if errors.Is(err, d.ErrInfrastructure) {
		code = d.CodeNetworkError
	}
	return d.WrapError(d.KindAuthentication, code, d.UserMessage(err), err)
}

func cloneUser(u *d.User) *d.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
