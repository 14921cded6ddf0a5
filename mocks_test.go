package activation_test

import (
	"context"
	"database/sql"
	"sync"

	activation "github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/broker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockUsers stubs the Users methods the workflow touches; the embedded
// interface covers the generic repository surface we never call in tests.
type MockUsers struct {
	mock.Mock
	activation.Users
}

func (m *MockUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *activation.User) (*activation.User, error) {
	args := m.Called(ctx, tx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activation.User), args.Error(1)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*activation.User, error) {
	args := m.Called(ctx, tx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activation.User), args.Error(1)
}

func (m *MockUsers) EnableTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockValidationTokens stubs the ValidationTokens methods the workflow
// touches.
type MockValidationTokens struct {
	mock.Mock
	activation.ValidationTokens
}

func (m *MockValidationTokens) Persist(ctx context.Context, token *activation.ValidationToken) (*activation.ValidationToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activation.ValidationToken), args.Error(1)
}

func (m *MockValidationTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*activation.ValidationToken, error) {
	args := m.Called(ctx, tx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*activation.ValidationToken), args.Error(1)
}

func (m *MockValidationTokens) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (bool, error) {
	args := m.Called(ctx, tx, token)
	return args.Bool(0), args.Error(1)
}

// MockRepositoryManager implements RepositoryManager.
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

// RunInTx runs the closure with a zero tx when the expectation returns nil,
// so the workflow inside the transaction executes against the mocks. An
// expectation returning an error simulates a failure to open the transaction.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() activation.Users {
	args := m.Called()
	return args.Get(0).(activation.Users)
}

func (m *MockRepositoryManager) ValidationTokens() activation.ValidationTokens {
	args := m.Called()
	return args.Get(0).(activation.ValidationTokens)
}

// MockActivitySink records activity expectations.
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event activation.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type publishedMessage struct {
	Channel string
	Payload []byte
}

// stubPublisher resolves every publish immediately with err, recording what
// went out. Continuations still run asynchronously, as with the real
// transport.
type stubPublisher struct {
	mu        sync.Mutex
	err       error
	published []publishedMessage
}

func (p *stubPublisher) Publish(_ context.Context, channel string, payload []byte) *broker.Outcome {
	p.mu.Lock()
	p.published = append(p.published, publishedMessage{Channel: channel, Payload: payload})
	p.mu.Unlock()

	out := broker.NewOutcome()
	out.Complete(p.err)
	return out
}

func (p *stubPublisher) messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.published))
	copy(out, p.published)
	return out
}

// stubHasher avoids paying the bcrypt cost in workflow tests.
type stubHasher struct{}

func (stubHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) ComparePasswordAndHash(password, hash string) error {
	if "hashed:"+password != hash {
		return activation.ErrMismatchedHashAndPassword
	}
	return nil
}
