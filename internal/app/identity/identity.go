// Package identity carries the signed-in user through a request.
package identity

import (
	"errors"

	"github.com/gin-gonic/gin"
)

const contextKey = "identity"

var ErrNoIdentity = errors.New("no authenticated identity")

// Identity is the per-request session object handed to services that act
// on behalf of a user.
type Identity struct {
	UserID    string
	SessionID string
	Email     string
}

func Set(c *gin.Context, id *Identity) {
	c.Set(contextKey, id)
}

func From(c *gin.Context) (*Identity, error) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, ErrNoIdentity
	}
	id, ok := v.(*Identity)
	if !ok || id == nil {
		return nil, ErrNoIdentity
	}
	return id, nil
}
