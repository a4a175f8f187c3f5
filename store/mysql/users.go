package mysql

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/models"
	"bookstore-service/store"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

var userColumns = []interface{}{
	"id", "email", "username", "hashed_password", "full_name",
	"is_active", "is_superuser", "is_banned", "created_at", "updated_at",
}

type userRepo struct {
	q   sqlx.ExtContext
	now func() time.Time
}

func (r userRepo) getBy(ctx context.Context, where goqu.Ex) (models.User, error) {
	query, args, err := toSQL(dialect.From("users").Select(userColumns...).Where(where).Limit(1))
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := sqlx.GetContext(ctx, r.q, &user, query, args...); err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

func (r userRepo) getMany(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := toSQL(dialect.From("users").Select(userColumns...).Where(goqu.Ex{"id": ids}))
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := sqlx.SelectContext(ctx, r.q, &users, query, args...); err != nil {
		return nil, translate(err)
	}
	for _, user := range users {
		out[user.ID] = user
	}
	return out, nil
}

func (r userRepo) Get(ctx context.Context, id int64) (models.User, error) {
	return r.getBy(ctx, goqu.Ex{"id": id})
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getBy(ctx, goqu.Ex{"email": email})
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getBy(ctx, goqu.Ex{"username": username})
}

func (r userRepo) List(ctx context.Context, page models.Pagination) ([]models.User, error) {
	page = page.Normalize()
	query, args, err := toSQL(dialect.From("users").
		Select(userColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Skip)))
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := sqlx.SelectContext(ctx, r.q, &users, query, args...); err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	now := r.now()
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO users (email, username, hashed_password, full_name, is_active, is_superuser, is_banned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.Email, user.Username, user.HashedPassword, user.FullName,
		user.IsActive, user.IsSuperuser, user.IsBanned, now, now)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r userRepo) Update(ctx context.Context, user *models.User) error {
	now := r.now()
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET email = ?, username = ?, hashed_password = ?, full_name = ?,
		    is_active = ?, is_superuser = ?, is_banned = ?, updated_at = ?
		WHERE id = ?
	`, user.Email, user.Username, user.HashedPassword, user.FullName,
		user.IsActive, user.IsSuperuser, user.IsBanned, now, user.ID)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func (r userRepo) Stats(ctx context.Context) (models.UserStatistics, error) {
	var stats models.UserStatistics
	err := sqlx.GetContext(ctx, r.q, &stats, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(is_active), 0) AS active,
		       COALESCE(SUM(is_banned), 0) AS banned
		FROM users
	`)
	if err != nil {
		return models.UserStatistics{}, translate(err)
	}
	return stats, nil
}
