package passwordless

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_LOGIN_TRANSITION"
	textCodeTerminalPhase     = "TERMINAL_LOGIN_PHASE"
)

// ErrInvalidTransition is returned when a requested phase change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid login phase transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalPhase is returned when attempting to move away from the
// authenticated phase; the login flow hands off to the session lifecycle.
var ErrTerminalPhase = goerrors.New("login phase is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalPhase).
	WithCode(goerrors.CodeConflict)

// LoginPhase is the phase of a transient login attempt.
type LoginPhase string

const (
	// PhaseEmail is the initial phase: collecting the login email.
	PhaseEmail LoginPhase = "email"
	// PhaseCodeRequested means a one-time code has been issued.
	PhaseCodeRequested LoginPhase = "code_requested"
	// PhaseAuthenticated is terminal for the login flow.
	PhaseAuthenticated LoginPhase = "authenticated"
)

// LoginAttempt tracks the transient state of the login UI flow. It is
// never persisted and is discarded on success or navigation away.
type LoginAttempt struct {
	Email string
	Phase LoginPhase
	// DevCode holds the diagnostic copy of the issued code in
	// non-production configurations only.
	DevCode string
	// CodeSerial increments on every issuance; a fresh code invalidates
	// the previous one.
	CodeSerial  int
	LastError   error
	RequestedAt *time.Time
}

// EnsurePhase normalizes a zero-value attempt to the initial phase.
func (a *LoginAttempt) EnsurePhase() {
	if a.Phase == "" {
		a.Phase = PhaseEmail
	}
}

// LoginStateMachine defines phase transitions for login attempts.
type LoginStateMachine interface {
	Transition(attempt *LoginAttempt, target LoginPhase) error
	CurrentPhase(attempt *LoginAttempt) LoginPhase
}

// LoginStateMachineOption customizes state machine construction.
type LoginStateMachineOption func(*loginStateMachine)

// WithLoginStateClock injects a custom clock (useful for tests).
func WithLoginStateClock(clock func() time.Time) LoginStateMachineOption {
	return func(sm *loginStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithLoginStateLogger overrides the logger used for transition tracing.
func WithLoginStateLogger(logger Logger) LoginStateMachineOption {
	return func(sm *loginStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewLoginStateMachine returns the default implementation.
func NewLoginStateMachine(opts ...LoginStateMachineOption) LoginStateMachine {
	sm := &loginStateMachine{
		transitions: map[LoginPhase]map[LoginPhase]struct{}{
			PhaseEmail: {
				PhaseCodeRequested: {},
			},
			PhaseCodeRequested: {
				// back/retry
				PhaseEmail: {},
				// re-issue with a fresh code
				PhaseCodeRequested: {},
				PhaseAuthenticated: {},
			},
		},
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type loginStateMachine struct {
	transitions map[LoginPhase]map[LoginPhase]struct{}
	now         func() time.Time
	logger      Logger
}

func (sm *loginStateMachine) Transition(attempt *LoginAttempt, target LoginPhase) error {
	if attempt == nil {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "attempt is nil",
		})
	}

	attempt.EnsurePhase()
	from := attempt.Phase

	if target == "" {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target phase is empty",
		})
	}

	if from == PhaseAuthenticated {
		return ErrTerminalPhase.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !sm.canTransition(from, target) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	sm.apply(attempt, from, target)

	return nil
}

func (sm *loginStateMachine) CurrentPhase(attempt *LoginAttempt) LoginPhase {
	if attempt == nil {
		return ""
	}
	attempt.EnsurePhase()
	return attempt.Phase
}

func (sm *loginStateMachine) canTransition(from, to LoginPhase) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *loginStateMachine) apply(attempt *LoginAttempt, from, target LoginPhase) {
	attempt.Phase = target

	switch target {
	case PhaseCodeRequested:
		now := sm.now()
		attempt.RequestedAt = &now
		attempt.CodeSerial++
		if from == PhaseCodeRequested {
			sm.logger.Debug("re-issued code for %s, serial %d", attempt.Email, attempt.CodeSerial)
			// a fresh code invalidates the previous one
			attempt.DevCode = ""
		}
	case PhaseEmail:
		attempt.DevCode = ""
		attempt.RequestedAt = nil
		attempt.LastError = nil
	case PhaseAuthenticated:
		attempt.LastError = nil
	}
}
