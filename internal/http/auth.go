package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	principalKey = "principal"
)

// ErrUnauthenticated means the request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the caller identity established by the authentication layer.
type Principal struct {
	UserID int64
	Role   string
}

// Authenticator resolves the caller of a request. Authentication itself
// happens upstream; implementations only read its result.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

// HeaderAuthenticator trusts the identity headers set by the gateway in
// front of the admin API. With a non-empty Token it also requires
// "Authorization: Bearer <Token>".
type HeaderAuthenticator struct {
	Token string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	if a.Token != "" {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.Token)) != 1 {
			return Principal{}, errors.Wrap(ErrUnauthenticated, "missing or invalid API token")
		}
	}
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return Principal{}, errors.Wrapf(ErrUnauthenticated, "missing %s header", HeaderUserID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, errors.Wrapf(ErrUnauthenticated, "invalid %s header", HeaderUserID)
	}
	return Principal{
		UserID: id,
		Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
	}, nil
}

// RequireAdmin rejects callers that are not authenticated (401) or whose role
// is not one of adminRoles (403).
func RequireAdmin(auth Authenticator, adminRoles []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(adminRoles))
	for _, role := range adminRoles {
		allowed[strings.ToLower(role)] = true
	}
	return func(c *gin.Context) {
		p, err := auth.Authenticate(c.Request)
		if err != nil {
			sendJSONError(c, http.StatusUnauthorized, CodeUnauthorized, "Authentication required.", err)
			return
		}
		if !allowed[p.Role] {
			sendJSONError(c, http.StatusForbidden, CodeForbidden, "Admin privileges required.", nil)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principalFrom(c *gin.Context) Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(Principal)
	return principal
}
