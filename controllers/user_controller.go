package controllers

import (
	"net/http"

	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

func (u *UserController) Me(c *gin.Context) {
	user, err := u.users.Get(c.Request.Context(), caller(c).UserID)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (u *UserController) UpdateMe(c *gin.Context) {
	var in models.UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	user, err := u.users.UpdateProfile(c.Request.Context(), caller(c), in)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (u *UserController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := u.users.Get(c.Request.Context(), id)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
