// Package payment simulates a card payment processor.
package payment

import "github.com/google/uuid"

const (
	MessageSucceeded = "Payment succeeded"
	MessageFailed    = "Payment failed. Please check your card details."
)

type Result struct {
	Success       bool
	Message       string
	TransactionID string
}

// AttemptPayment succeeds iff the last character of cardNumber is an even
// digit. Successful attempts carry a fresh random transaction id.
func AttemptPayment(cardNumber string) Result {
	if cardNumber == "" {
		return Result{Message: MessageFailed}
	}
	last := cardNumber[len(cardNumber)-1]
	if last < '0' || last > '9' || (last-'0')%2 != 0 {
		return Result{Message: MessageFailed}
	}
	return Result{
		Success:       true,
		Message:       MessageSucceeded,
		TransactionID: uuid.NewString(),
	}
}

// MaskCard keeps only the last four characters of a card number.
func MaskCard(cardNumber string) string {
	if len(cardNumber) > 4 {
		cardNumber = cardNumber[len(cardNumber)-4:]
	}
	return "****" + cardNumber
}
