package checkout

import (
	"errors"
	"fmt"

	"github.com/storelane/backoffice/internal/cart"
)

// ErrOrderNumberConflict signals a collision on (tenant, order_number). The
// service retries the whole transaction a bounded number of times before
// surfacing an internal error.
var ErrOrderNumberConflict = errors.New("checkout: order number conflict")

// CartInvalidError carries the validator's itemized rejections so the caller
// can report every problem in one response.
type CartInvalidError struct {
	Errors []cart.LineError
}

func (e *CartInvalidError) Error() string {
	return fmt.Sprintf("checkout: cart invalid (%d problems)", len(e.Errors))
}

// InsufficientStockError is raised when the atomic decrement inside the
// transaction finds less stock than validation saw moments earlier. It is an
// expected concurrency outcome, retryable by the user.
type InsufficientStockError struct {
	OwnerID string
}

func (e *InsufficientStockError) Error() string {
	return "checkout: insufficient stock for " + e.OwnerID
}
