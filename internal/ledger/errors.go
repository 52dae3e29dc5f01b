package ledger

import "errors"

var (
	ErrConflict             = errors.New("transaction conflicts with a concurrent commit; retry")
	ErrInsufficientFunds    = errors.New("insufficient lamports")
	ErrAccountInUse         = errors.New("account already in use")
	ErrAccountNotFound      = errors.New("account not found")
	ErrNotOwner             = errors.New("account is not owned by the invoking program")
	ErrPayerNotSigner       = errors.New("payer did not sign the transaction")
	ErrSlotTooLarge         = errors.New("slot size exceeds host limit")
	ErrUnknownProgram       = errors.New("unknown program")
	ErrMissingSignature     = errors.New("missing signature")
	ErrSignatureInvalid     = errors.New("invalid signature")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrMalformedTransaction = errors.New("malformed transaction")
	ErrBalanceOverflow      = errors.New("lamport balance overflow")
)

// IsRetryable reports whether resubmitting the same intent may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
