package activation

// Logical channel names. Deployments can prepend a namespace through the
// broker prefix option; the workflow only cares that publisher and consumer
// agree on the suffix.
const (
	// ActivationChannel carries ActivationEvent messages.
	ActivationChannel = "user.activation"
	// CompletionChannel carries CompletionEvent messages.
	CompletionChannel = "user.enabled"
)

// CompletionMarker is the payload the completion event carries.
const CompletionMarker = "registration-complete"

// ActivationEvent is published once per successful registration. The consumer
// reads the token from this payload, never from the token store, so delivery
// does not depend on the token row existing yet.
type ActivationEvent struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"validation_token"`
}

// CompletionEvent is published once per successful redemption. Pure
// notification; losing it does not affect account state.
type CompletionEvent struct {
	Marker string `json:"marker"`
}
