package middlewares

import (
	"context"
	"fmt"
	"strings"

	"bookstore-service/models"
	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

const (
	callerKey = "caller"
	userKey   = "user"
)

type TokenParser interface {
	Parse(token string) (string, error)
}

type Identifier interface {
	Identify(ctx context.Context, username string) (services.Caller, models.User, error)
}

// AuthMiddleware requires a valid Bearer token whose subject is a user in
// good standing, and stores the resolved caller on the context.
func AuthMiddleware(tokens TokenParser, users Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			AbortWithError(c, fmt.Errorf("%w: missing bearer token", services.ErrUnauthorized))
			return
		}
		username, err := tokens.Parse(token)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: could not validate credentials", services.ErrUnauthorized))
			return
		}
		caller, user, err := users.Identify(c.Request.Context(), username)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireSuperuser must run after AuthMiddleware.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller, ok := CurrentCaller(c); !ok || !caller.Superuser {
			AbortWithError(c, fmt.Errorf("%w: not enough permissions", services.ErrForbidden))
			return
		}
		c.Next()
	}
}

func CurrentCaller(c *gin.Context) (services.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return services.Caller{}, false
	}
	caller, ok := v.(services.Caller)
	return caller, ok
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
