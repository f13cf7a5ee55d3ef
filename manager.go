package passwordless

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SessionEventType enumerates session transitions visible to subscribers.
type SessionEventType string

const (
	SessionEventLogin          SessionEventType = "login"
	SessionEventLogout         SessionEventType = "logout"
	SessionEventRestore        SessionEventType = "restore"
	SessionEventInvalidated    SessionEventType = "invalidated"
	SessionEventProfileUpdated SessionEventType = "profile_updated"
)

// SessionEvent is delivered to subscribers on every session transition.
// Session is an immutable snapshot, nil when unauthenticated.
type SessionEvent struct {
	Type    SessionEventType
	Session *SessionObject
}

// SessionListener receives session events.
type SessionListener func(SessionEvent)

// SessionManager is the single source of truth for "who is logged in" and
// the sole writer of session state. It mediates between the credential
// store and the identity backend client, and notifies subscribers on
// every transition.
//
// Async completions (restore reconcile, identity sync, verification
// responses) are serialized against live transitions through a logical
// epoch: a result that arrives after the session it pertains to has
// changed is discarded. Last writer by logical time wins, not by arrival
// time.
type SessionManager struct {
	mu     sync.Mutex
	store  CredentialStore
	client IdentityClient
	cfg    Config
	logger Logger
	sink   ActivitySink
	now    func() time.Time
	sm     LoginStateMachine

	session      *SessionObject
	loading      bool
	epoch        uint64
	attempt      LoginAttempt
	issuePending bool

	subscribers map[uint64]SessionListener
	nextSubID   uint64
}

// ManagerOption customizes SessionManager construction.
type ManagerOption func(*SessionManager)

// WithManagerLogger overrides the default logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerActivitySink sets the ActivitySink used for audit events.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(m *SessionManager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithManagerStateMachine overrides the login attempt state machine.
func WithManagerStateMachine(sm LoginStateMachine) ManagerOption {
	return func(m *SessionManager) {
		if sm != nil {
			m.sm = sm
		}
	}
}

// NewSessionManager returns a manager wired to the given store, client
// and config. The manager starts in the loading state until
// RestoreSession resolves, so consumers can distinguish "no session yet
// determined" from "confirmed unauthenticated".
func NewSessionManager(store CredentialStore, client IdentityClient, cfg Config, opts ...ManagerOption) *SessionManager {
	if store == nil {
		store = NewMemoryCredentialStore()
	}

	m := &SessionManager{
		store:       store,
		client:      client,
		cfg:         cfg,
		logger:      defLogger{},
		sink:        noopActivitySink{},
		now:         time.Now,
		sm:          NewLoginStateMachine(),
		loading:     true,
		attempt:     LoginAttempt{Phase: PhaseEmail},
		subscribers: map[uint64]SessionListener{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Current returns an immutable snapshot of the session, nil when
// unauthenticated or still loading.
func (m *SessionManager) Current() *SessionObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

// IsLoading reports whether the startup restore check has not resolved yet.
func (m *SessionManager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Attempt returns a copy of the transient login attempt state.
func (m *SessionManager) Attempt() LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Subscribe registers a listener invoked on every session transition and
// returns its unsubscribe handle. Listeners must be removed when the
// consumer goes away to avoid leaks.
func (m *SessionManager) Subscribe(fn SessionListener) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// RestoreSession is invoked once at process start. A persisted credential
// triple is exposed immediately as a provisionally valid session to avoid
// an unauthenticated flash; when the client supports live validation the
// session is reconciled asynchronously and invalidation clears both store
// and session. Restore failures degrade silently to unauthenticated.
func (m *SessionManager) RestoreSession(ctx context.Context) error {
	creds, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("credential load failed, failing closed: %v", err)
	}

	if err != nil || !creds.Complete() {
		if creds.Partial() {
			if clearErr := m.store.Clear(ctx); clearErr != nil {
				m.logger.Error("unable to clear partial credentials: %v", clearErr)
			}
		}

		m.mu.Lock()
		m.session = nil
		m.loading = false
		m.mu.Unlock()

		m.emit(ctx, SessionEventRestore, ActivityEventRestore, nil)
		return nil
	}

	session := &SessionObject{
		IdentityID: creds.IdentityID,
		Email:      creds.Email,
		Token:      creds.Token,
		Role:       roleFromToken(creds.Token),
	}

	m.mu.Lock()
	m.session = session
	m.loading = false
	epoch := m.epoch
	m.mu.Unlock()

	m.emit(ctx, SessionEventRestore, ActivityEventRestore, nil)

	if validator, ok := m.client.(TokenValidator); ok {
		go m.reconcile(context.Background(), validator, session.Token, epoch)
	}

	return nil
}

// reconcile performs the post-restore validity check. Network failures
// are inconclusive and keep the provisional session; anything else
// invalidates it, unless a fresher transition already happened.
func (m *SessionManager) reconcile(ctx context.Context, validator TokenValidator, token string, epoch uint64) {
	err := validator.ValidateToken(ctx, token)
	if err == nil {
		return
	}

	if IsNetworkError(err) {
		m.logger.Warn("session validation inconclusive: %v", err)
		return
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.epoch++
	m.mu.Unlock()

	if clearErr := m.store.Clear(ctx); clearErr != nil {
		m.logger.Error("unable to clear credentials after invalidation: %v", clearErr)
	}

	m.emit(ctx, SessionEventInvalidated, ActivityEventInvalidated, map[string]any{
		"error": err.Error(),
	})
}

// RequestCode validates the email shape locally, then asks the backend to
// send a one-time code. A call while another request is in flight is
// rejected with ErrCodeRequestPending. Failures are surfaced verbatim and
// never retried.
func (m *SessionManager) RequestCode(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrInvalidEmail.WithMetadata(map[string]any{
			"email": email,
		})
	}

	m.mu.Lock()
	if m.issuePending {
		m.mu.Unlock()
		return ErrCodeRequestPending
	}
	m.issuePending = true
	m.attempt.Email = email
	m.mu.Unlock()

	if m.client == nil {
		m.clearIssuePending()
		return ErrNotInitialized
	}

	resp, err := m.client.IssueCode(ctx, email)

	m.mu.Lock()
	m.issuePending = false
	if err != nil {
		m.attempt.LastError = err
		m.mu.Unlock()
		m.recordActivity(ctx, ActivityEventLoginFailure, "", email, map[string]any{
			"stage": "issue_code",
			"error": err.Error(),
		})
		return err
	}

	if terr := m.sm.Transition(&m.attempt, PhaseCodeRequested); terr != nil {
		m.mu.Unlock()
		return terr
	}
	m.attempt.LastError = nil
	if resp != nil && !m.production() {
		m.attempt.DevCode = resp.DevCode
	}
	m.mu.Unlock()

	return nil
}

// VerifyCode exchanges the one-time code for a session. On success the
// credentials are persisted, subscribers are notified, and the identity
// is synced to the user directory asynchronously best-effort; a sync
// failure never rolls back the login. On failure the attempt stays in the
// code-requested phase.
func (m *SessionManager) VerifyCode(ctx context.Context, email, code string) error {
	if m.client == nil {
		return ErrNotInitialized
	}

	m.mu.Lock()
	if m.attempt.Phase != PhaseCodeRequested {
		phase := m.attempt.Phase
		m.mu.Unlock()
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": phase,
			"to":   PhaseAuthenticated,
		})
	}
	epoch := m.epoch
	m.mu.Unlock()

	resp, err := m.client.VerifyCode(ctx, email, code)
	if err != nil {
		m.mu.Lock()
		if m.epoch == epoch {
			m.attempt.LastError = err
		}
		m.mu.Unlock()
		m.recordActivity(ctx, ActivityEventLoginFailure, "", email, map[string]any{
			"stage": "verify_code",
			"error": err.Error(),
		})
		return err
	}

	now := m.now()
	session := &SessionObject{
		IdentityID: resp.IdentityID,
		Email:      email,
		Token:      resp.Token,
		Role:       roleFromToken(resp.Token),
		IssuedAt:   &now,
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// the session identity changed while the call was in flight,
		// the stale result must not resurrect it
		m.mu.Unlock()
		m.logger.Info("discarding stale verification for %s", email)
		return nil
	}

	if terr := m.sm.Transition(&m.attempt, PhaseAuthenticated); terr != nil {
		m.mu.Unlock()
		return terr
	}

	m.session = session
	m.loading = false
	m.epoch++
	sessionEpoch := m.epoch
	m.mu.Unlock()

	if serr := m.store.Save(ctx, &Credentials{
		IdentityID: session.IdentityID,
		Email:      session.Email,
		Token:      session.Token,
	}); serr != nil {
		// login still succeeded, only the restored-session path suffers
		m.logger.Error("unable to persist credentials: %v", serr)
	}

	m.mu.Lock()
	if m.epoch != sessionEpoch {
		// a logout raced the persistence write; undo it so a later
		// restore cannot resurrect the logged-out session
		m.mu.Unlock()
		if cerr := m.store.Clear(ctx); cerr != nil {
			m.logger.Error("unable to clear credentials after raced logout: %v", cerr)
		}
		return nil
	}
	m.mu.Unlock()

	m.emit(ctx, SessionEventLogin, ActivityEventLoginSuccess, nil)

	go m.syncIdentity(context.Background(), session.Clone())

	return nil
}

// syncIdentity reconciles the freshly authenticated identity with the
// remote user directory. Failures are logged and recorded, never surfaced
// to the login flow.
func (m *SessionManager) syncIdentity(ctx context.Context, session *SessionObject) {
	handler := SyncIdentityHandler{
		client: m.client,
		logger: m.logger,
	}

	msg := SyncIdentityMessage{
		IdentityID: session.IdentityID,
		Email:      session.Email,
		FirstName:  session.FirstName,
		LastName:   session.LastName,
	}

	if err := handler.Execute(ctx, msg); err != nil {
		m.logger.Warn("identity sync failed, will not block login: %v", err)
		m.recordActivity(ctx, ActivityEventSyncFailure, session.IdentityID, session.Email, map[string]any{
			"error": err.Error(),
		})
	}
}

// Logout clears the credential store and transitions to unauthenticated.
// Calling it when already unauthenticated is a no-op.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil && !m.loading {
		m.mu.Unlock()
		return nil
	}

	m.session = nil
	m.loading = false
	m.epoch++
	m.attempt = LoginAttempt{Phase: PhaseEmail}
	m.issuePending = false
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("unable to clear credentials on logout: %v", err)
	}

	m.emit(ctx, SessionEventLogout, ActivityEventLogout, nil)
	return nil
}

// UpdateProfile applies the name change locally first, then persists it
// through the backend. The optimistic local update is retained even when
// the remote call fails; the failure is still reported to the caller.
func (m *SessionManager) UpdateProfile(ctx context.Context, firstName, lastName string) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	m.session.FirstName = firstName
	m.session.LastName = lastName
	identityID := m.session.IdentityID
	m.mu.Unlock()

	m.emit(ctx, SessionEventProfileUpdated, ActivityEventProfileUpdated, nil)

	if m.client == nil {
		return ErrNotInitialized
	}

	if err := m.client.UpdateProfile(ctx, identityID, firstName, lastName); err != nil {
		m.logger.Warn("profile persistence failed, keeping local update: %v", err)
		return err
	}

	return nil
}

// ResetLogin moves the login attempt back to the email phase, discarding
// any issued code. Used by the "back" action of the login flow.
func (m *SessionManager) ResetLogin() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attempt.Phase == PhaseCodeRequested {
		if err := m.sm.Transition(&m.attempt, PhaseEmail); err == nil {
			return
		}
	}
	m.attempt = LoginAttempt{Phase: PhaseEmail}
}

func (m *SessionManager) clearIssuePending() {
	m.mu.Lock()
	m.issuePending = false
	m.mu.Unlock()
}

func (m *SessionManager) production() bool {
	// fail closed: without a config the dev code is never retained
	return m.cfg == nil || m.cfg.IsProduction()
}

// emit notifies subscribers with an immutable snapshot and records the
// matching activity event. Listeners run outside the manager lock.
func (m *SessionManager) emit(ctx context.Context, eventType SessionEventType, activityType ActivityEventType, metadata map[string]any) {
	m.mu.Lock()
	snapshot := m.session.Clone()
	listeners := make([]SessionListener, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	event := SessionEvent{Type: eventType, Session: snapshot}
	for _, fn := range listeners {
		if fn != nil {
			fn(event)
		}
	}

	identityID, email := "", ""
	if snapshot != nil {
		identityID, email = snapshot.IdentityID, snapshot.Email
	}
	m.recordActivity(ctx, activityType, identityID, email, metadata)
}

func (m *SessionManager) recordActivity(ctx context.Context, eventType ActivityEventType, identityID, email string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		IdentityID: identityID,
		Email:      email,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	sink := normalizeActivitySink(m.sink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
