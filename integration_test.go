package activation_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	activation "github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/broker"
	"github.com/goliatone/go-activation/notify"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// memoryBus is an in-process Publisher+Subscriber pair so the whole workflow
// can run without a broker: published payloads are dispatched to every bound
// handler on a background goroutine and the outcome completes afterwards.
type memoryBus struct {
	mu       sync.Mutex
	handlers map[string][]broker.Handler
}

func newMemoryBus() *memoryBus {
	return &memoryBus{handlers: map[string][]broker.Handler{}}
}

func (b *memoryBus) Subscribe(_ context.Context, channel string, handler broker.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
	return nil
}

func (b *memoryBus) Publish(ctx context.Context, channel string, payload []byte) *broker.Outcome {
	b.mu.Lock()
	handlers := append([]broker.Handler(nil), b.handlers[channel]...)
	b.mu.Unlock()

	out := broker.NewOutcome()
	go func() {
		for _, handler := range handlers {
			_ = handler(ctx, payload)
		}
		out.Complete(nil)
	}()
	return out
}

// memoryStore backs the fake repositories with maps.
type memoryStore struct {
	mu     sync.Mutex
	users  map[string]*activation.User
	tokens map[string]*activation.ValidationToken
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  map[string]*activation.User{},
		tokens: map[string]*activation.ValidationToken{},
	}
}

type memoryUsers struct {
	activation.Users
	store *memoryStore
}

func (r *memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.users[strings.ToLower(email)]
	return ok, nil
}

func (r *memoryUsers) RegisterTx(_ context.Context, _ bun.IDB, user *activation.User) (*activation.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = activation.RoleMember
	}
	user.Email = strings.ToLower(user.Email)
	r.store.users[user.Email] = user
	return user, nil
}

func (r *memoryUsers) GetByEmailTx(_ context.Context, _ bun.IDB, email string) (*activation.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[strings.ToLower(email)]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	return user, nil
}

func (r *memoryUsers) EnableTx(_ context.Context, _ bun.IDB, id uuid.UUID, passwordHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.ID == id {
			user.MarkEnabled(passwordHash)
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

type memoryTokens struct {
	activation.ValidationTokens
	store *memoryStore
}

func (r *memoryTokens) Persist(_ context.Context, token *activation.ValidationToken) (*activation.ValidationToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.tokens[token.Token] = token
	return token, nil
}

func (r *memoryTokens) GetByTokenTx(_ context.Context, _ bun.IDB, token string) (*activation.ValidationToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	record, ok := r.store.tokens[token]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	return record, nil
}

func (r *memoryTokens) DeleteByTokenTx(_ context.Context, _ bun.IDB, token string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.tokens[token]
	delete(r.store.tokens, token)
	return ok, nil
}

type memoryRepo struct {
	users  *memoryUsers
	tokens *memoryTokens
}

func newMemoryRepo() *memoryRepo {
	store := newMemoryStore()
	return &memoryRepo{
		users:  &memoryUsers{store: store},
		tokens: &memoryTokens{store: store},
	}
}

func (m *memoryRepo) Validate() error { return nil }
func (m *memoryRepo) MustValidate()   {}

func (m *memoryRepo) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *memoryRepo) Users() activation.Users                       { return m.users }
func (m *memoryRepo) ValidationTokens() activation.ValidationTokens { return m.tokens }

func TestActivationWorkflowEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newMemoryBus()
	repo := newMemoryRepo()

	mails := make(chan notify.ActivationMail, 1)
	consumer := notify.New(notify.MailerFunc(func(_ context.Context, mail notify.ActivationMail) error {
		mails <- mail
		return nil
	}), notify.WithSeenTokens())
	require.NoError(t, consumer.Bind(ctx, bus))

	completions := make(chan activation.CompletionEvent, 1)
	require.NoError(t, bus.Subscribe(ctx, activation.CompletionChannel, func(_ context.Context, payload []byte) error {
		var evt activation.CompletionEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		completions <- evt
		return nil
	}))

	sink := newActivityRecorder(activation.ActivityEventTokenPersisted)
	register := activation.NewRegisterUserHandler(repo, bus).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	var registered *activation.RegisterUserResponse
	require.NoError(t, register.Execute(ctx, activation.RegisterUserMessage{
		Name:  "Ana",
		Email: "Ana@Example.com",
		Phone: "+14155552671",
		OnResponse: func(r *activation.RegisterUserResponse) {
			registered = r
		},
	}))

	require.NotNil(t, registered)
	assert.Equal(t, activation.RegistrationEventSubmitted, registered.State)
	assert.False(t, registered.User.Activated())

	// the consumer gets the token from the event payload, never the store
	var mail notify.ActivationMail
	select {
	case mail = <-mails:
	case <-time.After(2 * time.Second):
		t.Fatal("activation mail never arrived")
	}
	assert.Equal(t, "ana@example.com", mail.To)
	assert.Equal(t, registered.Token, mail.Token)

	// token must be redeemable once the publish continuation persisted it
	sink.await(t, activation.ActivityEventTokenPersisted)

	enable := activation.NewEnableUserHandler(repo, bus).
		WithPasswordAuthenticator(stubHasher{}).
		WithLogger(testLogger{})

	var enabled *activation.EnableUserResponse
	require.NoError(t, enable.Execute(ctx, activation.EnableUserMessage{
		Token:           mail.Token,
		Password:        "Sup3rSecret",
		ConfirmPassword: "Sup3rSecret",
		OnResponse: func(r *activation.EnableUserResponse) {
			enabled = r
		},
	}))

	require.NotNil(t, enabled)
	assert.Equal(t, activation.RedemptionEnabled, enabled.State)
	assert.True(t, enabled.User.Activated())

	select {
	case evt := <-completions:
		assert.Equal(t, activation.CompletionMarker, evt.Marker)
	case <-time.After(2 * time.Second):
		t.Fatal("completion event never arrived")
	}

	// the token is single use
	err := enable.Execute(ctx, activation.EnableUserMessage{
		Token:           mail.Token,
		Password:        "Sup3rSecret",
		ConfirmPassword: "Sup3rSecret",
	})
	require.Error(t, err)
}
