package passwordless

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// SyncIdentityMessage describes an upsert into the remote user directory,
// keyed by identity id. Safe to execute repeatedly with the same
// arguments.
type SyncIdentityMessage struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

func (e SyncIdentityMessage) Type() string { return "identity.sync" }

// SyncIdentityHandler pushes a local identity record to the remote user
// directory. The session manager fires it best-effort after login; hosts
// may execute it again later to retry a failed sync.
type SyncIdentityHandler struct {
	client IdentityClient
	logger Logger
}

// NewSyncIdentityHandler returns a handler bound to the given client.
func NewSyncIdentityHandler(client IdentityClient, logger Logger) *SyncIdentityHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &SyncIdentityHandler{client: client, logger: logger}
}

func (h SyncIdentityHandler) Execute(ctx context.Context, event SyncIdentityMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during identity sync",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h SyncIdentityHandler) execute(ctx context.Context, event SyncIdentityMessage) error {
	if h.client == nil {
		return ErrNotInitialized
	}

	if strings.TrimSpace(event.Email) == "" {
		return goerrors.New("identity sync requires an email", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if event.IdentityID == "" {
		// derive a stable directory key so repeated syncs hit one record
		if id, err := hashid.NewUUID(event.Email); err == nil {
			event.IdentityID = id.String()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.client.SyncIdentity(ctx, event); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity sync failed")
	}

	return nil
}
