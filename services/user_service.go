package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bookstore-service/models"
	"bookstore-service/store"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashed, password string) (bool, error)
}

type UserService struct {
	store  store.Store
	hasher PasswordHasher
	logger *slog.Logger
}

func NewUserService(st store.Store, hasher PasswordHasher, logger *slog.Logger) *UserService {
	return &UserService{store: st, hasher: hasher, logger: logger}
}

func (s *UserService) Register(ctx context.Context, in models.UserCreate) (models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return models.User{}, fmt.Errorf("%w: email, username and password are required", ErrValidation)
	}

	user := models.User{
		Email:    in.Email,
		Username: in.Username,
		FullName: in.FullName,
		IsActive: true,
	}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if err := s.checkUnique(ctx, tx, 0, user.Email, user.Username); err != nil {
			return err
		}
		hashed, err := s.hasher.Hash(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.HashedPassword = hashed
		return storeError(tx.Users().Create(ctx, &user), "user %q", user.Username)
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// checkUnique rejects an email or username held by anyone other than selfID.
func (s *UserService) checkUnique(ctx context.Context, tx store.Store, selfID int64, email, username string) error {
	if email != "" {
		existing, err := tx.Users().GetByEmail(ctx, email)
		if err == nil && existing.ID != selfID {
			return fmt.Errorf("%w: email %q is already registered", ErrConflict, email)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeError(err, "user lookup")
		}
	}
	if username != "" {
		existing, err := tx.Users().GetByUsername(ctx, username)
		if err == nil && existing.ID != selfID {
			return fmt.Errorf("%w: username %q is already taken", ErrConflict, username)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return storeError(err, "user lookup")
		}
	}
	return nil
}

// standing rejects accounts that may not act.
func standing(user models.User) error {
	if user.IsBanned {
		return fmt.Errorf("%w: user %q is banned", ErrForbidden, user.Username)
	}
	if !user.IsActive {
		return fmt.Errorf("%w: user %q is inactive", ErrForbidden, user.Username)
	}
	return nil
}

// Authenticate checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("%w: incorrect username or password", ErrUnauthorized)
	}
	if err != nil {
		return models.User{}, storeError(err, "user lookup")
	}
	ok, err := s.hasher.Verify(user.HashedPassword, password)
	if err != nil {
		return models.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return models.User{}, fmt.Errorf("%w: incorrect username or password", ErrUnauthorized)
	}
	if err := standing(user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Identify resolves the subject of a verified token to a Caller, applying the
// same standing check as Authenticate so a ban takes effect immediately.
func (s *UserService) Identify(ctx context.Context, username string) (Caller, models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return Caller{}, models.User{}, fmt.Errorf("%w: could not validate credentials", ErrUnauthorized)
	}
	if err != nil {
		return Caller{}, models.User{}, storeError(err, "user lookup")
	}
	if err := standing(user); err != nil {
		return Caller{}, models.User{}, err
	}
	return CallerFor(user), user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, caller Caller, in models.UserUpdate) (models.User, error) {
	var user models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.Users().Get(ctx, caller.UserID)
		if err != nil {
			return storeError(err, "user %d", caller.UserID)
		}
		var email, username string
		if in.Email != nil && *in.Email != current.Email {
			email = strings.TrimSpace(*in.Email)
		}
		if in.Username != nil && *in.Username != current.Username {
			username = strings.TrimSpace(*in.Username)
		}
		if err := s.checkUnique(ctx, tx, current.ID, email, username); err != nil {
			return err
		}
		if email != "" {
			current.Email = email
		}
		if username != "" {
			current.Username = username
		}
		if in.FullName != nil {
			current.FullName = *in.FullName
		}
		if in.Password != nil {
			if *in.Password == "" {
				return fmt.Errorf("%w: password cannot be empty", ErrValidation)
			}
			hashed, err := s.hasher.Hash(*in.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			current.HashedPassword = hashed
		}
		if err := tx.Users().Update(ctx, &current); err != nil {
			return storeError(err, "user %d", current.ID)
		}
		user = current
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (models.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return models.User{}, storeError(err, "user %d", id)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, caller Caller, page models.Pagination) ([]models.User, models.PageMeta, error) {
	if err := caller.requireSuperuser(); err != nil {
		return nil, models.PageMeta{}, err
	}
	page = page.Normalize()
	users, err := s.store.Users().List(ctx, page)
	if err != nil {
		return nil, models.PageMeta{}, storeError(err, "list users")
	}
	stats, err := s.store.Users().Stats(ctx)
	if err != nil {
		return nil, models.PageMeta{}, storeError(err, "count users")
	}
	return users, page.Meta(stats.Total), nil
}

func (s *UserService) Ban(ctx context.Context, caller Caller, id int64) (models.User, error) {
	return s.setBanned(ctx, caller, id, true)
}

func (s *UserService) Unban(ctx context.Context, caller Caller, id int64) (models.User, error) {
	return s.setBanned(ctx, caller, id, false)
}

func (s *UserService) setBanned(ctx context.Context, caller Caller, id int64, banned bool) (models.User, error) {
	if err := caller.requireSuperuser(); err != nil {
		return models.User{}, err
	}
	var user models.User
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.Users().Get(ctx, id)
		if err != nil {
			return storeError(err, "user %d", id)
		}
		if current.IsSuperuser {
			return fmt.Errorf("%w: superusers cannot be banned or unbanned", ErrForbidden)
		}
		if current.IsBanned == banned {
			if banned {
				return fmt.Errorf("%w: user %d is already banned", ErrConflict, id)
			}
			return fmt.Errorf("%w: user %d is not banned", ErrConflict, id)
		}
		current.IsBanned = banned
		if err := tx.Users().Update(ctx, &current); err != nil {
			return storeError(err, "user %d", id)
		}
		user = current
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.InfoContext(ctx, "user ban changed", "user_id", id, "banned", banned, "by", caller.Username)
	return user, nil
}

// EnsureSuperuser creates the bootstrap superuser unless the username exists.
func (s *UserService) EnsureSuperuser(ctx context.Context, email, username, password string) (models.User, error) {
	existing, err := s.store.Users().GetByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, storeError(err, "user lookup")
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		Email:          email,
		Username:       username,
		HashedPassword: hashed,
		IsActive:       true,
		IsSuperuser:    true,
	}
	if err := s.store.Users().Create(ctx, &user); err != nil {
		return models.User{}, storeError(err, "user %q", username)
	}
	s.logger.InfoContext(ctx, "superuser created", "user_id", user.ID, "username", username)
	return user, nil
}
