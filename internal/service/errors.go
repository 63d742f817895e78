package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Errors returned by the order services.
var (
	ErrEmptyCart              = errors.New("at least one item is required")
	ErrInvalidCustomerName    = errors.New("customer_name must have at least 2 characters")
	ErrInvalidQuantity        = errors.New("quantity must be between 1 and 1000")
	ErrInvalidFulfillmentType = errors.New("invalid fulfillment_type")
	ErrMissingProduct         = errors.New("product or product_id is required")
	ErrMissingAddonName       = errors.New("add-on name is required")
	ErrProductNotFound        = errors.New("product not found")
	ErrAddonNotFound          = errors.New("add-on not found")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrStoreBusy              = errors.New("store busy, try again")

	// ErrStockNotSettled means the order was recorded but its stock
	// decrement did not commit. The outbox movement stays pending for the
	// reconciler, so the order must not be retried.
	ErrStockNotSettled = errors.New("order recorded but stock not settled")
)

// Reasons reported for lines that could not be checked against stock.
const (
	ReasonProductNotFound = "Produto não encontrado"
	ReasonAddonNotFound   = "Acompanhamento não encontrado"
)

// Shortage describes one product or add-on that cannot cover its demand.
// Reason is set instead of Available/Requested when the item is unknown.
type Shortage struct {
	Item      string
	Reason    string
	Available int64
	Requested int64
}

func (s Shortage) String() string {
	if s.Reason != "" {
		return fmt.Sprintf("%s: %s", s.Item, s.Reason)
	}
	return fmt.Sprintf("%s: disponível %d, solicitado %d", s.Item, s.Available, s.Requested)
}

// InsufficientStockError is returned when a cart cannot be covered by
// current stock. It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	return ErrInsufficientStock.Error() + ": " + joinShortages(e.Shortages)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func joinShortages(shortages []Shortage) string {
	parts := make([]string, len(shortages))
	for i, s := range shortages {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}

// IsValidationError reports whether err was caused by bad input rather than
// by store state.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyCart,
		ErrInvalidCustomerName,
		ErrInvalidQuantity,
		ErrInvalidFulfillmentType,
		ErrMissingProduct,
		ErrMissingAddonName,
		ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// isStoreBusy reports whether err means the store could not serve the
// attempt in time: lock waits, deadlocks, serialization conflicts, query
// cancellation, or an expired deadline.
func isStoreBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.LockNotAvailable,
			pgerrcode.DeadlockDetected,
			pgerrcode.SerializationFailure,
			pgerrcode.QueryCanceled,
			pgerrcode.TooManyConnections:
			return true
		}
	}
	return false
}

// classifyStoreError tags busy-store failures with ErrStoreBusy and leaves
// every other error untouched. ErrStockNotSettled is never turned into a
// retryable error.
func classifyStoreError(err error) error {
	if err == nil || errors.Is(err, ErrStoreBusy) || errors.Is(err, ErrStockNotSettled) {
		return err
	}
	if isStoreBusy(err) {
		return fmt.Errorf("%w: %w", ErrStoreBusy, err)
	}
	return err
}
