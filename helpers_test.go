package authgate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/obsvault/authgate/session"
	"github.com/obsvault/authgate/usage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockUserRepo struct {
	mu      sync.Mutex
	users   map[string]User
	byEmail map[string]string
	seq     int
	findErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   map[string]User{},
		byEmail: map[string]string{},
	}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return User{}, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return User{}, m.findErr
	}
	id, ok := m.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *mockUserRepo) Create(_ context.Context, nu NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[nu.Email]; ok {
		return User{}, ErrEmailTaken
	}
	m.seq++
	u := User{
		ID:                  fmt.Sprintf("u%d", m.seq),
		Email:               nu.Email,
		PasswordHash:        nu.PasswordHash,
		UserType:            nu.UserType,
		APIServiceCallLimit: nu.APIServiceCallLimit,
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return u, nil
}

func (m *mockUserRepo) Update(_ context.Context, id string, p UserPatch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if p.Email != nil {
		if other, taken := m.byEmail[*p.Email]; taken && other != id {
			return User{}, ErrEmailTaken
		}
		delete(m.byEmail, u.Email)
		u.Email = *p.Email
		m.byEmail[u.Email] = id
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.UserType != nil {
		u.UserType = *p.UserType
	}
	if p.APIServiceCallLimit != nil {
		u.APIServiceCallLimit = *p.APIServiceCallLimit
	}
	m.users[id] = u
	return u, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.byEmail, u.Email)
		delete(m.users, id)
	}
	return nil
}

func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.AccessSecret = "access-secret-for-tests-0123456789abcdef"
	cfg.Tokens.RefreshSecret = "refresh-secret-for-tests-0123456789abcdef"
	cfg.Tokens.Issuer = "authgate-test"
	cfg.Tokens.Audience = "obs-vault"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	return cfg
}

type testEnv struct {
	svc      *Service
	users    *mockUserRepo
	versions *session.RedisStore
	counter  *usage.Counter
	clock    *testClock
	mr       *miniredis.Miniredis
}

func newTestEnv(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		users:    newMockUserRepo(),
		versions: session.NewRedisStore(rdb, ""),
		counter:  usage.NewCounter(rdb, ""),
		clock:    newTestClock(),
		mr:       mr,
	}

	svc, err := New().
		WithConfig(cfg).
		WithUserStore(env.users).
		WithVersionStore(env.versions).
		WithUsageCounter(env.counter).
		WithAuditSink(sink).
		WithLoginThrottle(rdb).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)
	env.svc = svc
	return env
}

// seedUser stores a user and provisions its version record without going
// through Signup.
func (e *testEnv) seedUser(t *testing.T, email string) User {
	t.Helper()
	u, err := e.users.Create(context.Background(), NewUser{
		Email:               email,
		UserType:            UserTypeRegular,
		APIServiceCallLimit: 20,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := e.versions.CreateVersion(context.Background(), u.ID); err != nil {
		t.Fatalf("create version: %v", err)
	}
	return u
}

// flipAt replaces the byte at i with a different base64url character.
func flipAt(token string, i int) string {
	repl := byte('A')
	if token[i] == 'A' {
		repl = 'B'
	}
	return token[:i] + string(repl) + token[i+1:]
}

func signatureStart(token string) int {
	return strings.LastIndex(token, ".") + 1
}
