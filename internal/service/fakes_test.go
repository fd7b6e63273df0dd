package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"ballot-auth/internal/domain"
	"ballot-auth/internal/repository"
)

type fakeConnector struct {
	repo  repository.UserRepository
	err   error
	calls int
}

func (f *fakeConnector) EnsureReady(context.Context) (repository.UserRepository, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.repo, nil
}

type fakeUsers struct {
	mu       sync.Mutex
	byEmail  map[string]*domain.User
	lookups  []string
	getErr   error
	countErr error
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byEmail: make(map[string]*domain.User)}
	for _, u := range users {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, email)
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.byEmail)), nil
}

// plainHasher stands in for bcrypt where digest cost is irrelevant.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Verify(p, d string) bool {
	return strings.HasPrefix(d, "h:") && strings.TrimPrefix(d, "h:") == p
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
