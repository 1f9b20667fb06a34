package user

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

// --- Mock implementations ---

type mockRepo struct {
	byLogin map[string]*User
	nextID  int64
	getErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{byLogin: map[string]*User{}}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.byLogin[u.Login]; ok {
		return ErrLoginTaken
	}
	for _, existing := range m.byLogin {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	stored := *u
	m.byLogin[u.Login] = &stored
	return nil
}

func (m *mockRepo) GetByLogin(_ context.Context, login string) (*User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.byLogin[login]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// plainHasher stores passwords with a prefix so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(repo, plainHasher{}, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return svc
}

// --- Tests ---

func TestRegister(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	u, err := svc.Register(context.Background(), RegisterRequest{
		Login:    "testuser",
		Email:    "test@example.com",
		Password: "testpassword",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "hashed:testpassword", repo.byLogin["testuser"].PasswordHash)
}

func TestRegister_Conflicts(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Login: "testuser", Email: "test@example.com", Password: "p"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Login: "testuser", Email: "other@example.com", Password: "p"})
	require.ErrorIs(t, err, ErrLoginTaken)

	_, err = svc.Register(ctx, RegisterRequest{Login: "other", Email: "test@example.com", Password: "p"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Login: "traveler", Email: "traveler@example.com", Password: "travel123"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "traveler", "travel123")
	require.NoError(t, err)
	assert.Equal(t, "traveler", u.Login)

	_, err = svc.Authenticate(ctx, "traveler", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "travel123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_RepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.getErr = errors.New("connection reset")
	svc := newTestService(t, repo)

	_, err := svc.Authenticate(context.Background(), "traveler", "travel123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLookup(t *testing.T) {
	svc := newTestService(t, newMockRepo())

	_, err := svc.Lookup(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
