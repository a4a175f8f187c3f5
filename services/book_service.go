package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"bookstore-service/models"
	"bookstore-service/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImageUploader stores an object and returns the URL it is served from.
type ImageUploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type ImageUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// BookService owns book records and stock arithmetic.
type BookService struct {
	store        store.Store
	images       ImageUploader
	maxImageSize int64
	logger       *slog.Logger
}

type BookOption func(*BookService)

// WithImageUploader enables cover uploads up to maxSize bytes.
func WithImageUploader(uploader ImageUploader, maxSize int64) BookOption {
	return func(s *BookService) {
		s.images = uploader
		s.maxImageSize = maxSize
	}
}

func NewBookService(st store.Store, logger *slog.Logger, opts ...BookOption) *BookService {
	s := &BookService{store: st, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookService) Get(ctx context.Context, id int64) (models.Book, error) {
	book, err := s.store.Books().Get(ctx, id)
	if err != nil {
		return models.Book{}, storeError(err, "book %d", id)
	}
	return book, nil
}

// HasSufficientStock is false when the book is absent or short of quantity.
func (s *BookService) HasSufficientStock(ctx context.Context, id int64, quantity int) (bool, error) {
	book, err := s.store.Books().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError(err, "book %d", id)
	}
	return book.StockQuantity >= quantity, nil
}

func (s *BookService) List(ctx context.Context, page models.Pagination) (models.BookList, error) {
	page = page.Normalize()
	books, err := s.store.Books().List(ctx, page)
	if err != nil {
		return models.BookList{}, storeError(err, "list books")
	}
	total, err := s.store.Books().Count(ctx)
	if err != nil {
		return models.BookList{}, storeError(err, "count books")
	}
	return models.BookList{Books: books, PageMeta: page.Meta(total)}, nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0", ErrValidation)
	}
	if !price.Equal(price.Round(2)) {
		return fmt.Errorf("%w: price must have at most 2 decimal places", ErrValidation)
	}
	return nil
}

func (s *BookService) Create(ctx context.Context, caller Caller, in models.BookCreate) (models.Book, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.Book{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return models.Book{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := validatePrice(in.Price); err != nil {
		return models.Book{}, err
	}
	if err := validateStock(in.StockQuantity); err != nil {
		return models.Book{}, err
	}

	book := models.Book{
		Title:         in.Title,
		Description:   in.Description,
		Price:         in.Price.Round(2),
		StockQuantity: in.StockQuantity,
		ImageURL:      in.ImageURL,
	}
	if err := s.store.Books().Create(ctx, &book); err != nil {
		return models.Book{}, storeError(err, "create book")
	}
	s.logger.InfoContext(ctx, "book created", "book_id", book.ID, "by", caller.Username)
	return book, nil
}

func (s *BookService) Update(ctx context.Context, caller Caller, id int64, in models.BookUpdate) (models.Book, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.Book{}, err
	}

	var book models.Book
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.Books().Get(ctx, id)
		if err != nil {
			return storeError(err, "book %d", id)
		}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return fmt.Errorf("%w: title cannot be empty", ErrValidation)
			}
			current.Title = *in.Title
		}
		if in.Description != nil {
			current.Description = *in.Description
		}
		if in.Price != nil {
			if err := validatePrice(*in.Price); err != nil {
				return err
			}
			current.Price = in.Price.Round(2)
		}
		if in.StockQuantity != nil {
			if err := validateStock(*in.StockQuantity); err != nil {
				return err
			}
			current.StockQuantity = *in.StockQuantity
		}
		if in.ImageURL != nil {
			current.ImageURL = *in.ImageURL
		}
		if err := tx.Books().Update(ctx, &current); err != nil {
			return storeError(err, "book %d", id)
		}
		book = current
		return nil
	})
	if err != nil {
		return models.Book{}, err
	}
	return book, nil
}

// Delete removes a book no order item references.
func (s *BookService) Delete(ctx context.Context, caller Caller, id int64) error {
	if err := caller.requireSuperuser(); err != nil {
		return err
	}
	if err := s.store.Books().Delete(ctx, id); err != nil {
		return storeError(err, "book %d", id)
	}
	s.logger.InfoContext(ctx, "book deleted", "book_id", id, "by", caller.Username)
	return nil
}

// AdjustStock applies delta to the stock of a book. A delta that would drive
// stock negative is rejected and leaves stock unchanged.
func (s *BookService) AdjustStock(ctx context.Context, caller Caller, id int64, delta int) (models.Book, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.Book{}, err
	}
	if delta < -models.MaxStock || delta > models.MaxStock {
		return models.Book{}, fmt.Errorf("%w: delta must be between %d and %d", ErrValidation, -models.MaxStock, models.MaxStock)
	}
	book, err := s.store.Books().AdjustStock(ctx, id, delta)
	if err != nil {
		return models.Book{}, storeError(err, "book %d", id)
	}
	s.logger.InfoContext(ctx, "stock adjusted", "book_id", id, "delta", delta, "stock", book.StockQuantity)
	return book, nil
}

func validateStock(qty int) error {
	if qty < 0 || qty > models.MaxStock {
		return fmt.Errorf("%w: stock quantity must be between 0 and %d", ErrValidation, models.MaxStock)
	}
	return nil
}

// SetImage uploads a cover image and stores its URL on the book.
func (s *BookService) SetImage(ctx context.Context, caller Caller, id int64, upload ImageUpload) (models.Book, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.Book{}, err
	}
	if s.images == nil {
		return models.Book{}, fmt.Errorf("%w: image uploads are not configured", ErrValidation)
	}
	ext, ok := imageExtensions[upload.ContentType]
	if !ok {
		return models.Book{}, fmt.Errorf("%w: unsupported image type %q", ErrValidation, upload.ContentType)
	}
	if upload.Size <= 0 || (s.maxImageSize > 0 && upload.Size > s.maxImageSize) {
		return models.Book{}, fmt.Errorf("%w: image must be between 1 and %d bytes", ErrValidation, s.maxImageSize)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return models.Book{}, err
	}

	key := path.Join("books", fmt.Sprint(id), uuid.NewString()+ext)
	url, err := s.images.Upload(ctx, key, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return models.Book{}, fmt.Errorf("upload cover for book %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "cover uploaded", "book_id", id, "key", key)

	return s.Update(ctx, caller, id, models.BookUpdate{ImageURL: &url})
}
