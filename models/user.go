package models

import "time"

type User struct {
	ID             int64     `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	Username       string    `json:"username" db:"username"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	FullName       string    `json:"full_name" db:"full_name"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	IsSuperuser    bool      `json:"is_superuser" db:"is_superuser"`
	IsBanned       bool      `json:"is_banned" db:"is_banned"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type UserCreate struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=64"`
	FullName string `json:"full_name" binding:"omitempty,min=2,max=64"`
	Password string `json:"password" binding:"required,min=6"`
}

type UserUpdate struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Username *string `json:"username" binding:"omitempty,min=3,max=64"`
	FullName *string `json:"full_name" binding:"omitempty,min=2,max=64"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

type UserLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserStatistics struct {
	Total  int `json:"total" db:"total"`
	Active int `json:"active" db:"active"`
	Banned int `json:"banned" db:"banned"`
}
