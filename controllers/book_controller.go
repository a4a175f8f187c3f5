package controllers

import (
	"fmt"
	"net/http"

	"bookstore-service/middlewares"
	"bookstore-service/models"
	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

type BookController struct {
	books *services.BookService
}

func NewBookController(books *services.BookService) *BookController {
	return &BookController{books: books}
}

func (b *BookController) List(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}
	list, err := b.books.List(c.Request.Context(), page)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (b *BookController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	book, err := b.books.Get(c.Request.Context(), id)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (b *BookController) Create(c *gin.Context) {
	var in models.BookCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	book, err := b.books.Create(c.Request.Context(), caller(c), in)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (b *BookController) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in models.BookUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	book, err := b.books.Update(c.Request.Context(), caller(c), id, in)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (b *BookController) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := b.books.Delete(c.Request.Context(), caller(c), id); err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (b *BookController) AdjustStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in models.StockAdjustment
	if err := c.ShouldBindJSON(&in); err != nil {
		middlewares.AbortWithValidation(c, err)
		return
	}
	book, err := b.books.AdjustStock(c.Request.Context(), caller(c), id, in.Delta)
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// SetImage accepts a multipart form with the cover in the "file" field.
func (b *BookController) SetImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		middlewares.AbortWithError(c, fmt.Errorf("%w: multipart field \"file\" is required", services.ErrValidation))
		return
	}
	file, err := header.Open()
	if err != nil {
		middlewares.AbortWithError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	book, err := b.books.SetImage(c.Request.Context(), caller(c), id, services.ImageUpload{
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		middlewares.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}
