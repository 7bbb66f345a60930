// Package token implements the Assumptions Manager bearer-token handler:
// eager/lazy construction, expiry discovery via the JWT payload's exp claim
// (github.com/golang-jwt/jwt/v5), and refresh-before-expiry under a single
// mutex-guarded state holder.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/livecalc/infrastructure/amclient/transport"
	"github.com/R3E-Network/livecalc/infrastructure/errors"
)

// RefreshThreshold is the staleness window: a token with fewer than this
// many seconds until expiry is refreshed on next use.
const RefreshThreshold = 5 * time.Minute

// Handler owns a bearer token, refreshing it before expiry. All state
// transitions execute under a single mutex so concurrent callers never
// observe a torn token.
type Handler struct {
	mu sync.Mutex

	amURL    string
	username string
	password string
	hasCreds bool

	raw       string
	expiresAt time.Time

	transport *transport.Transport
}

// NewEager constructs a Handler that logs in immediately with username and
// password.
func NewEager(t *transport.Transport, amURL, username, password string) (*Handler, error) {
	h := &Handler{
		amURL:     amURL,
		username:  username,
		password:  password,
		hasCreds:  true,
		transport: t,
	}
	if err := h.login(); err != nil {
		return nil, err
	}
	return h, nil
}

// NewLazy constructs a Handler from an already-issued token, without
// credentials to refresh it. current_token() fails once the token goes
// stale and no credentials were supplied.
func NewLazy(existingToken string) (*Handler, error) {
	h := &Handler{}
	if err := h.setToken(existingToken); err != nil {
		return nil, err
	}
	return h, nil
}

// CurrentToken returns the cached token, refreshing first if it is within
// RefreshThreshold of expiry. It fails if a refresh is required but no
// credentials were supplied.
func (h *Handler) CurrentToken() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.secondsUntilExpiryLocked() < int64(RefreshThreshold.Seconds()) {
		if err := h.refreshLocked(); err != nil {
			return "", err
		}
	}
	return h.raw, nil
}

// SecondsUntilExpiry returns the (possibly negative) number of seconds
// remaining before the current token expires.
func (h *Handler) SecondsUntilExpiry() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.secondsUntilExpiryLocked()
}

func (h *Handler) secondsUntilExpiryLocked() int64 {
	return int64(time.Until(h.expiresAt).Seconds())
}

// ForceRefresh unconditionally refreshes the token. It fails if no
// credentials were supplied.
func (h *Handler) ForceRefresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshLocked()
}

func (h *Handler) refreshLocked() error {
	if !h.hasCreds {
		return errors.AMAuthError("token refresh required but no credentials were supplied")
	}
	return h.loginLocked()
}

func (h *Handler) login() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loginLocked()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) loginLocked() error {
	body, err := json.Marshal(loginRequest{Username: h.username, Password: h.password})
	if err != nil {
		return errors.AMAuthError("failed to encode login request")
	}

	resp, err := h.transport.Post(context.Background(), "/api/v1/auth/login", body, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAMAuth, "login request failed", errors.GetHTTPStatus(err), err)
	}

	var parsed loginResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return errors.DecodeError("malformed login response", err)
	}
	if parsed.Token == "" {
		return errors.AMAuthError("login response did not contain a token")
	}

	return h.setTokenLocked(parsed.Token)
}

func (h *Handler) setToken(raw string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setTokenLocked(raw)
}

func (h *Handler) setTokenLocked(raw string) error {
	expiresAt, err := expiryFromJWT(raw)
	if err != nil {
		// Never echo the token bytes into the error message.
		return errors.AMAuthError(fmt.Sprintf("cannot determine token expiry: %v", redactedDecodeError(err)))
	}
	h.raw = raw
	h.expiresAt = expiresAt
	return nil
}

// redactedDecodeError strips anything that looks like it could be token
// material from a decode error's message, leaving only the failure reason.
func redactedDecodeError(err error) string {
	return strings.SplitN(err.Error(), ":", 2)[0]
}

// expiryFromJWT base64url-decodes the middle segment of a dot-separated JWT
// and reads its exp claim, using golang-jwt's unverified parser (no
// signature check; only expiry is parsed). A token whose payload cannot be
// decoded is refused rather than defaulted to a fixed lifetime.
func expiryFromJWT(raw string) (time.Time, error) {
	if len(strings.Split(raw, ".")) != 3 {
		return time.Time{}, fmt.Errorf("token is not a dot-separated triple")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("payload segment is not a decodable JWT: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("payload does not carry an exp claim")
	}

	return exp.Time, nil
}
