package controllers

import (
	"fmt"
	"net/http"

	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

func (o *OrderController) Create(c *gin.Context) {
	defer recordOperation(c, "create")

	var in models.OrderCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	order, err := o.orders.Create(c.Request.Context(), caller(c), in.Items)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (o *OrderController) List(c *gin.Context) {
	defer recordOperation(c, "list")

	page, ok := bindPage(c)
	if !ok {
		return
	}
	list, err := o.orders.ListForUser(c.Request.Context(), caller(c), page)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (o *OrderController) Get(c *gin.Context) {
	defer recordOperation(c, "get")

	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := o.orders.Get(c.Request.Context(), caller(c), id)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Pay answers 200 for both approved and declined cards; the body's success
// flag tells them apart.
func (o *OrderController) Pay(c *gin.Context) {
	defer recordOperation(c, "pay")

	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	if req.OrderID != id {
		middlewares.AbortWithError(c, fmt.Errorf("%w: order_id %d does not match path order %d", services.ErrValidation, req.OrderID, id))
		return
	}

	res, err := o.orders.Pay(c.Request.Context(), caller(c), id, req.CardNumber)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	middlewares.RecordPayment(res.Success)
	c.JSON(http.StatusOK, res)
}

func (o *OrderController) Cancel(c *gin.Context) {
	defer recordOperation(c, "cancel")

	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := o.orders.Cancel(c.Request.Context(), caller(c), id)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
