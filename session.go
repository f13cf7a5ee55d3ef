package passwordless

import (
	"fmt"
	"strings"
	"time"
)

var _ Session = &SessionObject{}

// SessionObject is the authenticated identity held by the client after a
// successful verification. IdentityID and Email never change for the
// lifetime of the session; the token may be rotated by the backend.
type SessionObject struct {
	IdentityID string     `json:"identity_id,omitempty"`
	Email      string     `json:"email,omitempty"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Token      string     `json:"token,omitempty"`
	Role       UserRole   `json:"role,omitempty"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
}

func (s *SessionObject) GetIdentityID() string {
	return s.IdentityID
}

func (s *SessionObject) GetEmail() string {
	return s.Email
}

func (s *SessionObject) GetToken() string {
	return s.Token
}

// GetRole returns the session role, defaulting to RoleStandard when the
// stored value is absent or unknown. Absence never elevates.
func (s *SessionObject) GetRole() UserRole {
	return RoleOrDefault(string(s.Role))
}

// HasRole checks if the session has a specific role
func (s *SessionObject) HasRole(role UserRole) bool {
	return s.GetRole() == role
}

// IsAtLeast checks if the session role is at least the minimum required role
func (s *SessionObject) IsAtLeast(minRole UserRole) bool {
	return s.GetRole().IsAtLeast(minRole)
}

// DisplayName returns the user-editable name fields, falling back to the
// email when no names have been set.
func (s *SessionObject) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	if name == "" {
		return s.Email
	}
	return name
}

// Clone returns an independent copy. Subscribers receive clones so the
// manager remains the only writer of session state.
func (s *SessionObject) Clone() *SessionObject {
	if s == nil {
		return nil
	}

	clone := *s
	if s.IssuedAt != nil {
		issuedAt := *s.IssuedAt
		clone.IssuedAt = &issuedAt
	}
	return &clone
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"identity=%s email=%s role=%s iat=%s",
		s.IdentityID,
		s.Email,
		s.GetRole(),
		issuedAt,
	)
}
