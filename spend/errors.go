package spend

import (
	"errors"
	"fmt"
)

var (
	// ErrSplitRequired is returned by the builder when the candidate
	// transaction cannot stay under the standard mass ceiling with the
	// inputs required to fund it. It signals the generator to produce a
	// compounding transaction first; it is never surfaced to the caller.
	ErrSplitRequired = errors.New("transaction must be split")

	// ErrMassExceedsLimit is returned when a transaction shape exceeds
	// the standard mass ceiling even in its minimal form, which
	// indicates a pathological payload or output and cannot be resolved
	// by splitting.
	ErrMassExceedsLimit = errors.New("transaction mass exceeds the " +
		"standard limit")

	// ErrInputIndexOutOfRange is returned when a signature is supplied
	// for an input index the transaction does not have.
	ErrInputIndexOutOfRange = errors.New("input index out of range")

	// ErrAlreadySigned is returned when a signature is supplied for an
	// input slot that is already filled. Overwriting is disallowed to
	// catch caller bugs.
	ErrAlreadySigned = errors.New("input already signed")

	// ErrIncompleteSignatures is returned when a transaction is
	// finalized while one or more signature slots are still empty.
	ErrIncompleteSignatures = errors.New("transaction is not fully " +
		"signed")

	// ErrAlreadySubmitted is returned when a pending transaction is
	// submitted more than once. Submission consumes the transaction.
	ErrAlreadySubmitted = errors.New("pending transaction already " +
		"submitted")

	// ErrStaleSnapshot is an advisory error reporting that the snapshot
	// a generator was pinned to has been superseded by later chain tip
	// events. It never blocks a run; every run stays deterministic for
	// the snapshot it was constructed with.
	ErrStaleSnapshot = errors.New("pinned snapshot superseded")

	// ErrFeeEstimationNotConverging is returned when the selection/mass
	// fixed point fails to settle within the pass bound. In practice the
	// loop converges within three passes since mass grows in discrete
	// steps with input and output count.
	ErrFeeEstimationNotConverging = errors.New("fee estimation did not " +
		"converge")
)

// ErrInsufficientFunds is returned when selection exhausts all mature
// coins before reaching the target. The target already includes the fee
// estimate, so under-selection can never succeed here and then fail fee
// validation downstream.
type ErrInsufficientFunds struct {
	// Required is the target the selection was trying to reach,
	// including the anticipated fee, in sompi.
	Required uint64

	// Available is the total value of all spendable coins, in sompi.
	Available uint64
}

// Error returns a human-readable string describing the error.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: need %d sompi, only %d "+
		"available", e.Required, e.Available)
}
