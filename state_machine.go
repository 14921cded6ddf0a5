package activation

import (
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_ACTIVATION_STATE_TRANSITION"

// ErrInvalidTransition is returned when an attempt is moved to a state its
// transition table does not allow.
var ErrInvalidTransition = goerrors.New("invalid activation state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// RegistrationState tracks one activation attempt through the register
// workflow. TOKEN_PERSISTED and PUBLISH_FAILED are terminal and only reached
// by the asynchronous publish continuation.
type RegistrationState string

const (
	RegistrationValidating     RegistrationState = "validating"
	RegistrationAccountCreated RegistrationState = "account_created"
	RegistrationEventSubmitted RegistrationState = "event_submitted"
	RegistrationTokenPersisted RegistrationState = "token_persisted"
	RegistrationPublishFailed  RegistrationState = "publish_failed"
)

// RedemptionState tracks one redemption attempt. Every state other than
// token_lookup and validating_credentials is terminal.
type RedemptionState string

const (
	RedemptionTokenLookup           RedemptionState = "token_lookup"
	RedemptionExpiredRejected       RedemptionState = "expired_rejected"
	RedemptionNotFoundRejected      RedemptionState = "not_found_rejected"
	RedemptionValidatingCredentials RedemptionState = "validating_credentials"
	RedemptionValidationRejected    RedemptionState = "validation_rejected"
	RedemptionEnabled               RedemptionState = "enabled"
)

var registrationTransitions = map[RegistrationState]map[RegistrationState]struct{}{
	RegistrationValidating: {
		RegistrationAccountCreated: {},
	},
	RegistrationAccountCreated: {
		RegistrationEventSubmitted: {},
	},
	RegistrationEventSubmitted: {
		RegistrationTokenPersisted: {},
		RegistrationPublishFailed:  {},
	},
}

var redemptionTransitions = map[RedemptionState]map[RedemptionState]struct{}{
	RedemptionTokenLookup: {
		RedemptionExpiredRejected:       {},
		RedemptionNotFoundRejected:      {},
		RedemptionValidatingCredentials: {},
	},
	RedemptionValidatingCredentials: {
		RedemptionValidationRejected: {},
		RedemptionEnabled:            {},
	},
}

// RegistrationAttempt is the register workflow's explicit state machine.
// Safe for concurrent use: the publish continuation advances the attempt on
// the broker executor while the request goroutine may still be reading it.
type RegistrationAttempt struct {
	mu    sync.Mutex
	state RegistrationState
}

// NewRegistrationAttempt starts at validating.
func NewRegistrationAttempt() *RegistrationAttempt {
	return &RegistrationAttempt{state: RegistrationValidating}
}

// To advances the attempt, rejecting transitions the table does not allow.
func (a *RegistrationAttempt) To(target RegistrationState) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if allowed, ok := registrationTransitions[a.state]; ok {
		if _, exists := allowed[target]; exists {
			a.state = target
			return nil
		}
	}
	return ErrInvalidTransition.WithMetadata(map[string]any{
		"from": string(a.state),
		"to":   string(target),
	})
}

// State returns the current state.
func (a *RegistrationAttempt) State() RegistrationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Terminal reports whether the attempt can advance no further.
func (a *RegistrationAttempt) Terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := registrationTransitions[a.state]
	return !ok
}

// RedemptionAttempt is the redeem workflow's explicit state machine.
type RedemptionAttempt struct {
	mu    sync.Mutex
	state RedemptionState
}

// NewRedemptionAttempt starts at token_lookup.
func NewRedemptionAttempt() *RedemptionAttempt {
	return &RedemptionAttempt{state: RedemptionTokenLookup}
}

// To advances the attempt, rejecting transitions the table does not allow.
func (a *RedemptionAttempt) To(target RedemptionState) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if allowed, ok := redemptionTransitions[a.state]; ok {
		if _, exists := allowed[target]; exists {
			a.state = target
			return nil
		}
	}
	return ErrInvalidTransition.WithMetadata(map[string]any{
		"from": string(a.state),
		"to":   string(target),
	})
}

// State returns the current state.
func (a *RedemptionAttempt) State() RedemptionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Terminal reports whether the attempt can advance no further.
func (a *RedemptionAttempt) Terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := redemptionTransitions[a.state]
	return !ok
}
