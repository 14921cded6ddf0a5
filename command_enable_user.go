package activation

import (
	"context"
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-activation/broker"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type EnableUserMessage struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	OnResponse      func(*EnableUserResponse)
}

func (e EnableUserMessage) Type() string { return "user.enable" }

// validateCredentials checks the submitted password pair against the policy.
// It runs only after the token and account resolve, so credential problems
// never mask a dead token, and reports every violation together.
func (e EnableUserMessage) validateCredentials(policy PasswordPolicy) error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Password, validation.Required, validation.By(validatePolicy(policy))),
		validation.Field(&e.ConfirmPassword, validation.Required, validation.By(ValidateStringEquals(e.Password))),
	)
	return wrapValidationResult(err)
}

type EnableUserResponse struct {
	User  *User
	State RedemptionState
}

// EnableUserHandler drives a redemption attempt:
//
//	token_lookup -> {expired_rejected | not_found_rejected |
//	                 validating_credentials -> {validation_rejected | enabled}}
//
// Account save and token delete share one transaction; under concurrent
// redemption of the same token the delete's rows-affected result decides the
// winner and every loser observes not-found. The completion event after
// commit is pure notification, nothing is gated on its outcome.
type EnableUserHandler struct {
	repo      RepositoryManager
	publisher broker.Publisher
	hasher    PasswordAuthenticator
	policy    PasswordPolicy
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// NewEnableUserHandler creates a handler with sane defaults.
func NewEnableUserHandler(repo RepositoryManager, publisher broker.Publisher) *EnableUserHandler {
	return &EnableUserHandler{
		repo:      repo,
		publisher: publisher,
		hasher:    BcryptHasher{},
		policy:    DefaultPasswordPolicy,
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

// WithPasswordAuthenticator overrides the hashing collaborator.
func (h *EnableUserHandler) WithPasswordAuthenticator(hasher PasswordAuthenticator) *EnableUserHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithPasswordPolicy overrides the strength policy.
func (h *EnableUserHandler) WithPasswordPolicy(policy PasswordPolicy) *EnableUserHandler {
	if policy != nil {
		h.policy = policy
	}
	return h
}

// WithActivitySink sets the sink used to emit redemption events.
func (h *EnableUserHandler) WithActivitySink(sink ActivitySink) *EnableUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *EnableUserHandler) WithLogger(logger Logger) *EnableUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *EnableUserHandler) WithClock(clock func() time.Time) *EnableUserHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *EnableUserHandler) Execute(ctx context.Context, event EnableUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *EnableUserHandler) execute(ctx context.Context, event EnableUserMessage) error {
	attempt := NewRedemptionAttempt()

	if event.Token == "" {
		_ = attempt.To(RedemptionNotFoundRejected)
		return NewTokenNotFoundError(event.Token)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.ValidationTokens().GetByTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				_ = attempt.To(RedemptionNotFoundRejected)
				return NewTokenNotFoundError(event.Token)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve validation token")
		}

		if token.Expired(h.now()) {
			// the row stays in place; a later attempt re-rejects it
			_ = attempt.To(RedemptionExpiredRejected)
			return NewTokenExpiredError(token.Email)
		}

		user, err = h.repo.Users().GetByEmailTx(ctx, tx, token.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// a token without an account means tampering or a bug,
				// never a user-correctable condition
				return NewInconsistentStateError(token.Email)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account for token")
		}

		if err := attempt.To(RedemptionValidatingCredentials); err != nil {
			return err
		}

		if err := event.validateCredentials(h.policy); err != nil {
			_ = attempt.To(RedemptionValidationRejected)
			return err
		}

		passwordHash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Users().EnableTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable user account")
		}

		removed, err := h.repo.ValidationTokens().DeleteByTokenTx(ctx, tx, token.Token)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete validation token")
		}
		if !removed {
			// a concurrent redemption won the race; roll everything back
			return NewTokenNotFoundError(token.Token)
		}

		user.MarkEnabled(passwordHash)
		return attempt.To(RedemptionEnabled)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
	}

	h.publishCompletion(user)

	h.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserActivated,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	if event.OnResponse != nil {
		event.OnResponse(&EnableUserResponse{
			User:  user,
			State: attempt.State(),
		})
	}

	return nil
}

// publishCompletion is fire-and-forget: the account is already enabled, a
// lost notification does not affect correctness.
func (h *EnableUserHandler) publishCompletion(user *User) {
	payload, err := json.Marshal(CompletionEvent{Marker: CompletionMarker})
	if err != nil {
		h.logger.Error("failed to encode completion event: %v", err)
		return
	}

	h.publisher.Publish(context.Background(), CompletionChannel, payload).
		Then(func(pubErr error) {
			if pubErr != nil {
				h.logger.Error("completion event for %s failed to publish: %v", user.Email, pubErr)
				return
			}
			h.recordActivity(context.Background(), ActivityEvent{
				EventType: ActivityEventCompletionNotice,
				Actor:     ActorRef{Type: "system"},
				UserID:    user.ID.String(),
				Email:     user.Email,
				Metadata: map[string]any{
					"marker": CompletionMarker,
				},
			})
		})
}

func (h *EnableUserHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = h.now()
	}
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during activation: %v", err)
	}
}
