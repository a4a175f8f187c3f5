package controllers

import (
	"fmt"
	"strconv"

	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

type pageQuery struct {
	Skip  int `form:"skip" binding:"min=0"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func bindPage(c *gin.Context) (models.Pagination, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middlewares.AbortWithValidation(c, err)
		return models.Pagination{}, false
	}
	return models.Pagination{Skip: q.Skip, Limit: q.Limit}, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middlewares.AbortWithError(c, fmt.Errorf("%w: invalid %s %q", services.ErrValidation, name, c.Param(name)))
		return 0, false
	}
	return id, true
}

// caller is only called behind AuthMiddleware.
func caller(c *gin.Context) services.Caller {
	caller, _ := middlewares.CurrentCaller(c)
	return caller
}

// recordOperation counts the handler outcome once the response is written.
func recordOperation(c *gin.Context, operation string) {
	status := c.Writer.Status()
	middlewares.RecordOrderOperation(operation, status >= 200 && status < 300)
}
