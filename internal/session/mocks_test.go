package session

import (
	"context"
	"sync"

	d "github.com/fjod/go_cart/storefront/domain"
)

type AuthServiceMock struct {
	mu sync.Mutex

	token       string
	loginErr    error
	logoutErr   error
	identity    *d.User
	identityErr error

	loginCalls    int
	logoutCalls   int
	identityCalls int
}

func (m *AuthServiceMock) Login(_ context.Context, _ d.Credentials) (string, *d.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCalls++
	if m.loginErr != nil {
		return "", nil, m.loginErr
	}
	return m.token, m.identity, nil
}

func (m *AuthServiceMock) Register(_ context.Context, _ d.RegistrationProfile) (string, *d.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCalls++
	if m.loginErr != nil {
		return "", nil, m.loginErr
	}
	return m.token, m.identity, nil
}

func (m *AuthServiceMock) Logout(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	return m.logoutErr
}

func (m *AuthServiceMock) Identity(_ context.Context) (*d.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identityCalls++
	if m.identityErr != nil {
		return nil, m.identityErr
	}
	return m.identity, nil
}

func (m *AuthServiceMock) setIdentity(u *d.User, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = u
	m.identityErr = err
}

func (m *AuthServiceMock) calls() (login, logout, identity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginCalls, m.logoutCalls, m.identityCalls
}
