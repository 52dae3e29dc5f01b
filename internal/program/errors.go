package program

import (
	"errors"
	"fmt"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/schema"
)

// Error is one kind of the program error taxonomy. Values are compared by identity,
// so wrapped instances still match with errors.Is.
type Error struct {
	Code    int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAddressMismatch    = &Error{Code: 6000, Kind: "AddressMismatch", Message: "derived address does not match supplied address"}
	ErrUnauthorized       = &Error{Code: 6001, Kind: "Unauthorized", Message: "signer is not the required authority"}
	ErrAlreadyInitialized = &Error{Code: 6002, Kind: "AlreadyInitialized", Message: "account already initialized"}
	ErrNotInitialized     = &Error{Code: 6003, Kind: "NotInitialized", Message: "account not initialized"}
	ErrSizeExceeded       = &Error{Code: 6004, Kind: "SizeExceeded", Message: "field exceeds declared maximum size"}
	ErrAllocationFailure  = &Error{Code: 6005, Kind: "AllocationFailure", Message: "payer cannot cover allocation cost"}
	ErrBumpNotFound       = &Error{Code: 6006, Kind: "BumpNotFound", Message: "no valid bump for seeds"}
	ErrCounterOverflow    = &Error{Code: 6007, Kind: "CounterOverflow", Message: "counter overflow"}
	ErrInvalidArgument    = &Error{Code: 6008, Kind: "InvalidArgument", Message: "invalid instruction argument"}
)

var taxonomy = []*Error{
	ErrAddressMismatch,
	ErrUnauthorized,
	ErrAlreadyInitialized,
	ErrNotInitialized,
	ErrSizeExceeded,
	ErrAllocationFailure,
	ErrBumpNotFound,
	ErrCounterOverflow,
	ErrInvalidArgument,
}

// Taxonomy lists every error kind in code order.
func Taxonomy() []*Error {
	return append([]*Error(nil), taxonomy...)
}

// Classify returns the taxonomy kind carried by err, if any.
func Classify(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind, true
		}
	}
	return nil, false
}

// hostError lifts errors from the ledger, deriver and schema layers onto the
// taxonomy. The cause stays matchable. Unknown errors, including ledger conflicts,
// pass through unchanged.
func hostError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := Classify(err); ok {
		return err
	}
	var kind *Error
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrBalanceOverflow):
		kind = ErrAllocationFailure
	case errors.Is(err, ledger.ErrPayerNotSigner):
		kind = ErrUnauthorized
	case errors.Is(err, ledger.ErrAccountInUse):
		kind = ErrAlreadyInitialized
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrNotOwner),
		errors.Is(err, schema.ErrDiscriminatorMismatch), errors.Is(err, schema.ErrTruncated):
		kind = ErrNotInitialized
	case errors.Is(err, ledger.ErrSlotTooLarge), errors.Is(err, schema.ErrSizeExceeded),
		errors.Is(err, address.ErrMaxSeedLength), errors.Is(err, address.ErrTooManySeeds):
		kind = ErrSizeExceeded
	case errors.Is(err, address.ErrBumpNotFound):
		kind = ErrBumpNotFound
	default:
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
