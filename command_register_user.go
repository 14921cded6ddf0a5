package activation

import (
	"context"
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-activation/broker"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	OnResponse func(*RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate runs the syntactic rules; every field problem is reported, not
// just the first.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Phone, validation.Required, validation.By(ValidatePhoneNumber(DefaultPhoneRegion))),
	)
}

type RegisterUserResponse struct {
	User  *User
	Token string
	State RegistrationState
}

// RegisterUserHandler drives an activation attempt:
//
//	validating -> account_created -> event_submitted -> {token_persisted | publish_failed}
//
// The caller gets control back at event_submitted; the terminal state is
// reached by the publish continuation on the broker's executor pool. The
// token row is written only after the broker acknowledges the activation
// event, so a failed publish leaves the account registered but the token
// unredeemable.
type RegisterUserHandler struct {
	repo      RepositoryManager
	publisher broker.Publisher
	tokenTTL  time.Duration
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, publisher broker.Publisher) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:      repo,
		publisher: publisher,
		tokenTTL:  DefaultTokenTTL,
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithTokenTTL overrides the validation token lifetime.
func (h *RegisterUserHandler) WithTokenTTL(ttl time.Duration) *RegisterUserHandler {
	if ttl > 0 {
		h.tokenTTL = ttl
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *RegisterUserHandler) WithClock(clock func() time.Time) *RegisterUserHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	attempt := NewRegistrationAttempt()

	// fail fast: nothing is written until the payload checks out
	if err := event.Validate(); err != nil {
		return wrapValidationResult(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// pre-check is an optimization only; the unique index on email is the
	// final arbiter under concurrent registration
	exists, err := h.repo.Users().ExistsByEmail(ctx, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}
	if exists {
		return NewEmailTakenError(event.Email)
	}

	user := &User{
		Name:  event.Name,
		Email: event.Email,
		Phone: event.Phone,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if err := attempt.To(RegistrationAccountCreated); err != nil {
		return err
	}

	token := newValidationTokenAt(user.Email, h.tokenTTL, h.now())

	payload, err := json.Marshal(ActivationEvent{
		Email:    user.Email,
		Username: user.Name,
		Token:    token.Token,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode activation event")
	}

	outcome := h.publisher.Publish(ctx, ActivationChannel, payload)
	if err := attempt.To(RegistrationEventSubmitted); err != nil {
		return err
	}

	outcome.Then(func(pubErr error) {
		h.afterPublish(attempt, user, token, pubErr)
	})

	h.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{
			User:  user,
			Token: token.Token,
			State: attempt.State(),
		})
	}

	return nil
}

// afterPublish runs on the broker executor once the activation event resolves.
// The request context is gone by now, so persistence gets its own deadline.
func (h *RegisterUserHandler) afterPublish(attempt *RegistrationAttempt, user *User, token *ValidationToken, pubErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if pubErr != nil {
		_ = attempt.To(RegistrationPublishFailed)
		h.logger.Error("activation event for %s failed to publish: %v", user.Email, pubErr)
		h.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventPublishFailed,
			Actor:     ActorRef{Type: "system"},
			UserID:    user.ID.String(),
			Email:     user.Email,
			Metadata: map[string]any{
				"text_code": TextCodePublishFailed,
				"error":     pubErr.Error(),
			},
		})
		return
	}

	if _, err := h.repo.ValidationTokens().Persist(ctx, token); err != nil {
		h.logger.Error("failed to persist validation token for %s: %v", user.Email, err)
		return
	}

	_ = attempt.To(RegistrationTokenPersisted)
	h.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventTokenPersisted,
		Actor:     ActorRef{Type: "system"},
		UserID:    user.ID.String(),
		Email:     user.Email,
	})
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = h.now()
	}
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}
