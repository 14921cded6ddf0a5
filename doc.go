// Package activation implements the asynchronous user-activation workflow:
// accounts are created disabled, an activation event is published to a
// broker, a consumer mails out a single-use token, and redeeming the token
// enables the account.
//
// Registration:
//   - RegisterUserHandler validates the profile, writes the disabled account,
//     mints a ValidationToken, and submits an ActivationEvent. The caller is
//     answered as soon as the event is submitted; the token row is persisted
//     only in the publish-success continuation, so a failed publish leaves
//     the account registered but never redeemable with that token.
//
// Redemption:
//   - EnableUserHandler looks up the token, rejects expired or unknown
//     tokens, validates the password pair against a pluggable policy, then
//     enables the account and deletes the token inside one transaction. A
//     completion event is published fire-and-forget afterwards.
//
// Attempt state machines:
//   - RegistrationAttempt and RedemptionAttempt make the workflow states
//     explicit and are reported in the handler responses; invalid moves fail
//     with ErrInvalidTransition.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter covering registration,
//     activation, token persistence, publish failures, and completion
//     notices. Sinks run
//     best-effort (errors are logged) so operator reporting never blocks or
//     rolls back a committed step.
package activation
