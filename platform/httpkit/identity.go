package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as seen by handlers. It hides the
// gin context keys the auth middleware populates, so services and handlers
// never read framework state directly.
type Identity interface {
	UserID() uuid.UUID
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	authenticated bool
}

func (i identity) UserID() uuid.UUID { return i.userID }

func (i identity) Roles() []string { return i.roles }

func (i identity) IsAuthenticated() bool { return i.authenticated }

func (i identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

var anonymous = identity{}

// GetIdentity reads the caller's identity from the request context. Requests
// that did not pass the auth middleware yield an unauthenticated identity.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return anonymous
	}
	uid, ok := raw.(uuid.UUID)
	if !ok {
		return anonymous
	}

	var roles []string
	if rawRoles, ok := c.Get(ContextRolesKey); ok {
		roles, _ = rawRoles.([]string)
	}

	return identity{userID: uid, roles: roles, authenticated: true}
}

// MustGetIdentity is GetIdentity for routes that require auth: it aborts the
// request with 401 and returns nil when no identity is present.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
