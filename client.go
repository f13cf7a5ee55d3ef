package passwordless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuePath   = "/auth/code"
	defaultVerifyPath  = "/auth/verify"
	defaultSessionPath = "/auth/session"
	defaultSyncPath    = "/directory/users"
	defaultProfilePath = "/directory/users/profile"
)

var _ IdentityClient = (*HTTPIdentityClient)(nil)
var _ TokenValidator = (*HTTPIdentityClient)(nil)

// HTTPIdentityClient talks JSON over HTTP to the authentication backend
// and the user directory. Every operation surfaces a typed failure and
// none are retried internally; retry policy belongs to the caller.
type HTTPIdentityClient struct {
	baseURL     string
	http        *http.Client
	logger      Logger
	issuePath   string
	verifyPath  string
	sessionPath string
	syncPath    string
	profilePath string
}

// NewHTTPIdentityClient builds a client from the config base URL. An
// empty base URL yields a client whose operations fail with
// ErrNotInitialized, replacing silent no-op stand-ins.
func NewHTTPIdentityClient(cfg Config) *HTTPIdentityClient {
	baseURL := ""
	timeout := 10 * time.Second
	if cfg != nil {
		baseURL = strings.TrimRight(cfg.GetBaseURL(), "/")
		if cfg.GetRequestTimeout() > 0 {
			timeout = time.Duration(cfg.GetRequestTimeout()) * time.Second
		}
	}

	return &HTTPIdentityClient{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: timeout},
		logger:      defLogger{},
		issuePath:   defaultIssuePath,
		verifyPath:  defaultVerifyPath,
		sessionPath: defaultSessionPath,
		syncPath:    defaultSyncPath,
		profilePath: defaultProfilePath,
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *HTTPIdentityClient) WithHTTPClient(client *http.Client) *HTTPIdentityClient {
	if client != nil {
		c.http = client
	}
	return c
}

// WithLogger overrides the logger.
func (c *HTTPIdentityClient) WithLogger(logger Logger) *HTTPIdentityClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// IssueCode asks the backend to deliver a one-time code to email. A
// non-production backend may return the code inline as DevCode.
func (c *HTTPIdentityClient) IssueCode(ctx context.Context, email string) (*IssueCodeResponse, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}

	out := &IssueCodeResponse{}
	status, message, err := c.postJSON(ctx, c.issuePath, map[string]string{"email": email}, out)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		if status >= 400 && status < 500 {
			return nil, ErrInvalidEmail.WithMetadata(map[string]any{
				"status":  status,
				"message": message,
			})
		}
		return nil, ErrNetwork.WithMetadata(map[string]any{
			"status":  status,
			"message": message,
			"path":    c.issuePath,
		})
	}

	return out, nil
}

// VerifyCode exchanges email and code for an identity. Success is
// strictly both an identity id and a token; partial responses fail.
func (c *HTTPIdentityClient) VerifyCode(ctx context.Context, email, code string) (*VerifyCodeResponse, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}

	out := &VerifyCodeResponse{}
	status, message, err := c.postJSON(ctx, c.verifyPath, map[string]string{
		"email": email,
		"code":  code,
	}, out)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		if status >= 400 && status < 500 {
			return nil, ErrInvalidCode.WithMetadata(map[string]any{
				"status":  status,
				"message": message,
			})
		}
		return nil, ErrNetwork.WithMetadata(map[string]any{
			"status":  status,
			"message": message,
			"path":    c.verifyPath,
		})
	}

	if out.IdentityID == "" || out.Token == "" {
		return nil, ErrNetwork.WithMetadata(map[string]any{
			"reason": "partial verification response",
		})
	}

	return out, nil
}

// ValidateToken checks a restored token against the backend session
// endpoint. Implements the optional TokenValidator interface.
func (c *HTTPIdentityClient) ValidateToken(ctx context.Context, token string) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	status, message, err := c.postJSON(ctx, c.sessionPath, map[string]string{"token": token}, nil)
	if err != nil {
		return err
	}

	if status >= 200 && status <= 299 {
		return nil
	}

	if status >= 400 && status < 500 {
		return ErrUnauthorized.WithMetadata(map[string]any{
			"status":  status,
			"message": message,
		})
	}

	return ErrNetwork.WithMetadata(map[string]any{
		"status":  status,
		"message": message,
		"path":    c.sessionPath,
	})
}

// SyncIdentity upserts the identity into the remote user directory. The
// operation is idempotent; callers treat it as fire-and-forget.
func (c *HTTPIdentityClient) SyncIdentity(ctx context.Context, msg SyncIdentityMessage) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	status, message, err := c.postJSON(ctx, c.syncPath, map[string]string{
		"identity_id": msg.IdentityID,
		"email":       msg.Email,
		"name":        strings.TrimSpace(msg.FirstName + " " + msg.LastName),
	}, nil)
	if err != nil {
		return err
	}

	if status < 200 || status > 299 {
		return ErrNetwork.WithMetadata(map[string]any{
			"status":  status,
			"message": message,
			"path":    c.syncPath,
		})
	}

	return nil
}

// UpdateProfile persists the user-editable name fields. The echoed
// response body is ignored.
func (c *HTTPIdentityClient) UpdateProfile(ctx context.Context, identityID, firstName, lastName string) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	status, message, err := c.postJSON(ctx, c.profilePath, map[string]string{
		"identity_id": identityID,
		"first_name":  firstName,
		"last_name":   lastName,
	}, nil)
	if err != nil {
		return err
	}

	if status < 200 || status > 299 {
		return ErrNetwork.WithMetadata(map[string]any{
			"status":  status,
			"message": message,
			"path":    c.profilePath,
		})
	}

	return nil
}

func (c *HTTPIdentityClient) ensureInitialized() error {
	if c == nil || c.http == nil || c.baseURL == "" {
		return ErrNotInitialized
	}
	return nil
}

type backendError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e backendError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// postJSON sends a JSON POST and decodes a 2xx body into out when out is
// non-nil. Non-2xx bodies are decoded for their error message. Transport
// failures and timeouts map to ErrNetwork.
func (c *HTTPIdentityClient) postJSON(ctx context.Context, path string, body any, out any) (int, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", ErrNetwork.WithMetadata(map[string]any{
			"reason": fmt.Sprintf("encode request: %v", err),
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, "", ErrNetwork.WithMetadata(map[string]any{
			"reason": fmt.Sprintf("build request: %v", err),
		})
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, "", ErrNetwork.WithMetadata(map[string]any{
			"reason": err.Error(),
			"path":   path,
		})
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		if out != nil {
			if err := json.NewDecoder(res.Body).Decode(out); err != nil && err != io.EOF {
				return res.StatusCode, "", ErrNetwork.WithMetadata(map[string]any{
					"reason": fmt.Sprintf("decode response: %v", err),
				})
			}
		}
		_, _ = io.Copy(io.Discard, res.Body)
		return res.StatusCode, "", nil
	}

	failure := backendError{}
	if err := json.NewDecoder(res.Body).Decode(&failure); err != nil && err != io.EOF {
		c.logger.Debug("unparseable error body from %s: %v", path, err)
	}
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode, failure.text(), nil
}

// roleFromToken reads the role claim when the backend token happens to be
// a JWT. The parse is unverified: the client gates rendering only, actual
// enforcement stays server-side. Opaque tokens and absent claims resolve
// to RoleStandard.
func roleFromToken(token string) UserRole {
	if token == "" {
		return RoleStandard
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return RoleStandard
	}

	if role, ok := claims["role"].(string); ok {
		return RoleOrDefault(role)
	}

	return RoleStandard
}
