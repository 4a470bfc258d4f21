package model

import "github.com/pkg/errors"

// Validation errors -- caller mistakes caught before any state changes.
var (
	ErrInvalidDeposit        = errors.New("invalid deposit")
	ErrInvalidPercentage     = errors.New("percentage out of range")
	ErrDuplicateRecipient    = errors.New("duplicate recipient")
	ErrPercentageSumMismatch = errors.New("percentages do not sum to 1")
	ErrStaleHeight           = errors.New("height below log tail")
)

// State errors -- the operation doesn't apply in the escrow's current
// lifecycle state.
var (
	ErrEscrowLocked      = errors.New("escrow is locked")
	ErrAlreadySettled    = errors.New("escrow already settled")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
	ErrNotFound          = errors.New("not found")
)

// Authorization errors -- callers may retry once the condition changes.
var (
	ErrNotFunded    = errors.New("escrow not fully funded")
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrTransferFailed aborts the whole settlement; nothing is committed, so
// the call is safe to retry once the bad recipient is fixed.
var ErrTransferFailed = errors.New("transfer failed")
