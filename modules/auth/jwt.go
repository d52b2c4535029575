package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nullgate/gatewire"
)

// Claims is the payload of the page/cookie session token.
type Claims struct {
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

var errTokenInvalid = errors.New("auth: invalid session token")

// jwtHeaderSegment encodes the header {"alg":"HS256","typ":"JWT"}; pre-encoded once since
// it never varies.
var jwtHeaderSegment = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// signToken produces a compact HS256 JWT for claims, signed with secret.
// Hand-rolled rather than via a third-party JWT library, the way the
// teacher's middlewares/jwt signs tokens directly with crypto/hmac.
func signToken(secret []byte, claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	payloadSegment := base64.RawURLEncoding.EncodeToString(payload)

	signingInput := jwtHeaderSegment + "." + payloadSegment
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return signingInput + "." + sig, nil
}

// verifyToken checks token's signature and expiry, returning its claims.
func verifyToken(secret []byte, token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, errTokenInvalid
	}

	signingInput := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !constantTimeEqual([]byte(expected), []byte(parts[2])) {
		return Claims{}, errTokenInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errTokenInvalid, err)
	}
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return Claims{}, fmt.Errorf("%w: expired", errTokenInvalid)
	}
	return claims, nil
}

// SessionAuth is a request_filter Stage enforcing a signed cookie session,
// the "page" auth mode: unauthenticated requests are redirected to
// LoginPath instead of receiving a bare 401.
type SessionAuth struct {
	gatewire.BaseStage

	Secret     []byte
	CookieName string
	LoginPath  string
	TTL        time.Duration
}

// NewSessionAuth builds a SessionAuth stage.
func NewSessionAuth(secret []byte, cookieName, loginPath string, ttl time.Duration) *SessionAuth {
	if cookieName == "" {
		cookieName = "gatewire_session"
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionAuth{Secret: secret, CookieName: cookieName, LoginPath: loginPath, TTL: ttl}
}

// IssueCookie signs a new session token for subject and attaches it as a
// Set-Cookie header (called by the configured login handler, not by this
// Stage itself).
func (s *SessionAuth) IssueCookie(w http.ResponseWriter, subject string) error {
	token, err := signToken(s.Secret, Claims{Subject: subject, ExpiresAt: time.Now().Add(s.TTL).Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.TTL),
	})
	return nil
}

func (s *SessionAuth) RequestFilter(ctx context.Context, sess *gatewire.Session, stageCtx any) (gatewire.Result, error) {
	cookie, err := sess.Request().Cookie(s.CookieName)
	if err == nil {
		if claims, verr := verifyToken(s.Secret, cookie.Value); verr == nil {
			sess.SetExtension("auth.subject", claims.Subject)
			return gatewire.Unhandled, nil
		}
	}

	sess.Writer().Header().Set("Location", s.LoginPath)
	sess.Writer().WriteHeader(http.StatusFound)
	sess.MarkResponded()
	return gatewire.ResponseSent, nil
}
