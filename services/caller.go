package services

import (
	"fmt"

	"bookstore-service/models"
)

// Caller is the identity an operation runs on behalf of. Every capability
// check a service performs goes through the methods below.
type Caller struct {
	UserID    int64
	Username  string
	Superuser bool
}

func CallerFor(user models.User) Caller {
	return Caller{UserID: user.ID, Username: user.Username, Superuser: user.IsSuperuser}
}

func (c Caller) requireSuperuser() error {
	if !c.Superuser {
		return fmt.Errorf("%w: not enough permissions", ErrForbidden)
	}
	return nil
}

// canView allows the owner and superusers; it also governs cancellation.
func (c Caller) canView(order models.Order) error {
	if order.UserID != c.UserID && !c.Superuser {
		return fmt.Errorf("%w: you are not authorized to access order %d", ErrForbidden, order.ID)
	}
	return nil
}

// canPay allows the owner only.
func (c Caller) canPay(order models.Order) error {
	if order.UserID != c.UserID {
		return fmt.Errorf("%w: only the owner can pay order %d", ErrForbidden, order.ID)
	}
	return nil
}
