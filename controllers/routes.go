package controllers

import (
	"bookstore-service/middlewares"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth   *AuthController
	Users  *UserController
	Books  *BookController
	Orders *OrderController
	Admin  *AdminController
}

// RegisterRoutes mounts the API under /api/v1. auth must resolve the caller.
func RegisterRoutes(r gin.IRouter, h Handlers, auth gin.HandlerFunc) {
	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	users := api.Group("/users", auth)
	users.GET("/me", h.Users.Me)
	users.PUT("/me", h.Users.UpdateMe)
	users.GET("/:id", h.Users.Get)

	books := api.Group("/books")
	books.GET("", h.Books.List)
	books.GET("/:id", h.Books.Get)
	booksAdmin := books.Group("", auth, middlewares.RequireSuperuser())
	booksAdmin.POST("", h.Books.Create)
	booksAdmin.PUT("/:id", h.Books.Update)
	booksAdmin.DELETE("/:id", h.Books.Delete)
	booksAdmin.POST("/:id/stock", h.Books.AdjustStock)
	booksAdmin.PUT("/:id/image", h.Books.SetImage)

	orders := api.Group("/orders", auth)
	orders.GET("", h.Orders.List)
	orders.POST("", h.Orders.Create)
	orders.GET("/:id", h.Orders.Get)
	orders.POST("/:id/pay", h.Orders.Pay)
	orders.POST("/:id/cancel", h.Orders.Cancel)

	admin := api.Group("/admin", auth, middlewares.RequireSuperuser())
	admin.GET("/statistics", h.Admin.Statistics)
	admin.GET("/users", h.Admin.Users)
	admin.POST("/users/:id/ban", h.Admin.Ban)
	admin.POST("/users/:id/unban", h.Admin.Unban)
	admin.GET("/orders", h.Admin.Orders)
}
