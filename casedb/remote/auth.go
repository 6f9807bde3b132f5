package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// SessionCookieName is the cookie carrying the API session key
const SessionCookieName = "sessionid"

// AuthType names an API authentication scheme
type AuthType string

const (
	AuthNone          AuthType = "none"
	AuthCookie        AuthType = "cookie"
	AuthDjangoSession AuthType = "django-session" // Alias of AuthCookie used by older clients
	AuthOAuth         AuthType = "oauth"
	AuthPassword      AuthType = "http"
)

var (
	// ErrOAuthNotSupported is returned when an oauth descriptor is resolved
	ErrOAuthNotSupported = errors.New("oauth API auth not supported yet")

	// ErrPasswordAuthNotSupported is returned when a password (http) descriptor is resolved
	ErrPasswordAuthNotSupported = errors.New("password-based API auth not supported")
)

// Auth describes how requests to the case API authenticate.
// The zero value means unauthenticated.
type Auth struct {
	Type AuthType `json:"type" yaml:"type" validate:"omitempty,oneof=none cookie django-session oauth http"`
	Key  string   `json:"key" yaml:"key"`
}

// UnknownAuthError reports an auth type outside the supported set
type UnknownAuthError struct {
	Type AuthType
}

// Error implements the error interface
func (e *UnknownAuthError) Error() string {
	return fmt.Sprintf("unknown API auth type %q", e.Type)
}

// Decorator prepares an outbound request for a resolved auth scheme
type Decorator func(req *http.Request)

// ResolveAuth turns an auth descriptor into a request decorator.
// It is called once per querier so that unsupported schemes fail before any
// request is made.
func ResolveAuth(a Auth) (Decorator, error) {
	switch a.Type {
	case "", AuthNone:
		return func(*http.Request) {}, nil
	case AuthCookie, AuthDjangoSession:
		key := a.Key
		return func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: key})
		}, nil
	case AuthOAuth:
		return nil, ErrOAuthNotSupported
	case AuthPassword:
		return nil, ErrPasswordAuthNotSupported
	default:
		return nil, &UnknownAuthError{Type: a.Type}
	}
}
