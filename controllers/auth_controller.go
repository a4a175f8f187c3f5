package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bookstore-service/cache"
	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"
	"bookstore-service/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	users   *services.UserService
	tokens  *utils.TokenIssuer
	limiter *cache.LoginLimiter
}

func NewAuthController(users *services.UserService, tokens *utils.TokenIssuer, limiter *cache.LoginLimiter) *AuthController {
	return &AuthController{users: users, tokens: tokens, limiter: limiter}
}

func (a *AuthController) Register(c *gin.Context) {
	var in models.UserCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	user, err := a.users.Register(c.Request.Context(), in)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login issues a bearer token. Repeated failures for one username lock it
// out for the limiter's cooldown; a limiter outage does not block logins.
func (a *AuthController) Login(c *gin.Context) {
	var in models.UserLogin
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	ctx := c.Request.Context()

	retry, locked, err := a.limiter.Locked(ctx, in.Username)
	if err != nil {
		_ = c.Error(err)
	}
	if locked {
		c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "too_many_attempts",
			"message": fmt.Sprintf("too many failed login attempts, retry in %d seconds", int(retry.Seconds())),
		})
		return
	}

	user, err := a.users.Authenticate(ctx, in.Username, in.Password)
	if errors.Is(err, services.ErrUnauthorized) {
		if remaining, ferr := a.limiter.Fail(ctx, in.Username); ferr != nil {
			_ = c.Error(ferr)
		} else if a.limiter != nil {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		}
	}
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	if err := a.limiter.Reset(ctx, in.Username); err != nil {
		_ = c.Error(err)
	}

	token, err := a.tokens.Issue(user.Username)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Token{AccessToken: token, TokenType: "bearer"})
}
