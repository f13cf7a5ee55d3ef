// Package passwordless provides the client side of an email one-time-code
// login flow: a login state machine, session lifecycle management,
// credential persistence, and role-gated route guarding.
//
// Login flow:
//   - LoginStateMachine centralizes the phase graph of a login attempt
//     (email entry, code requested, authenticated). SessionManager drives
//     it through RequestCode and VerifyCode and exposes the attempt state
//     to views so the host can render the right form.
//
// Session lifecycle:
//   - SessionManager is the single writer of session state. It restores
//     persisted credentials on startup, notifies subscribers of every
//     change, and serializes async completions with a logical epoch so a
//     verification or validation that finishes after a logout can never
//     resurrect the session.
//
// Credential stores:
//   - CredentialStore implementations persist the identity/email/token
//     triple across restarts. MemoryCredentialStore suits tests and
//     ephemeral hosts; BunCredentialStore persists through a local
//     database. Partial records are treated as absent and cleared.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by SessionManager
//     to describe login, logout, restore, and sync events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package passwordless
