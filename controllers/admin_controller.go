package controllers

import (
	"context"
	"net/http"

	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	users  *services.UserService
	orders *services.OrderService
}

func NewAdminController(users *services.UserService, orders *services.OrderService) *AdminController {
	return &AdminController{users: users, orders: orders}
}

func (a *AdminController) Statistics(c *gin.Context) {
	stats, err := a.orders.Statistics(c.Request.Context(), caller(c))
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type userList struct {
	Users []models.User `json:"users"`
	models.PageMeta
}

func (a *AdminController) Users(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	users, meta, err := a.users.List(c.Request.Context(), caller(c), page)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, userList{Users: users, PageMeta: meta})
}

func (a *AdminController) Ban(c *gin.Context) {
	a.setBanned(c, a.users.Ban)
}

func (a *AdminController) Unban(c *gin.Context) {
	a.setBanned(c, a.users.Unban)
}

func (a *AdminController) setBanned(c *gin.Context, op func(context.Context, services.Caller, int64) (models.User, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := op(c.Request.Context(), caller(c), id)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *AdminController) Orders(c *gin.Context) {
	defer recordOperation(c, "list_all")

	page, ok := bindPage(c)
	if !ok {
		return
	}
	list, err := a.orders.ListAll(c.Request.Context(), caller(c), page)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
