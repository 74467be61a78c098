// Package auth resolves the calling actor from request credentials.
//
// The store never reads ambient actor state: middleware resolves an Actor
// once per request and handlers pass it explicitly into every service call.
package auth

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const actorContextKey = "substrate.actor"

// Actor identifies who is performing a request. Roles are not carried here;
// the authorization evaluator resolves them from the membership tables so a
// revoked role takes effect immediately.
type Actor struct {
	// ID is the actor's identity (a thing of type "person" or a service
	// account). Never uuid.Nil for an authenticated request.
	ID uuid.UUID

	// APIKey is true when the actor authenticated with the static API key
	// instead of a bearer token.
	APIKey bool
}

// SetActor stores the actor on the echo context. Exposed for tests.
func SetActor(c echo.Context, actor *Actor) {
	c.Set(actorContextKey, actor)
}

// GetActor returns the actor resolved by the middleware, or nil when the
// request is unauthenticated.
func GetActor(c echo.Context) *Actor {
	actor, ok := c.Get(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return actor
}
