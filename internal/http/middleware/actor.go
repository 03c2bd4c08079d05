// README: Actor extraction; identity is asserted by the upstream gateway.
package middleware

import (
	"github.com/gin-gonic/gin"

	"kota/internal/types"
)

const (
	actorRoleKey = "actor_role"
	actorIDKey   = "actor_id"
)

// Actor reads the identity headers the auth gateway sets after verifying the
// session. Session issuance itself lives outside this service.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorRoleKey, c.GetHeader("X-Actor-Role"))
		c.Set(actorIDKey, c.GetHeader("X-Actor-Id"))
		c.Next()
	}
}

// CallerActor returns the actor behind the request.
func CallerActor(c *gin.Context) types.Actor {
	return types.Actor{
		Role: types.Role(c.GetString(actorRoleKey)),
		ID:   types.ID(c.GetString(actorIDKey)),
	}
}
