package escrow

import "errors"

var (
	// ErrInvalidArgument covers a missing counterparty, an empty item
	// bundle, or an item with no asset class.
	ErrInvalidArgument = errors.New("invalid trade arguments")

	// ErrInvalidState is returned for operations on a trade that does
	// not exist or is no longer PENDING.
	ErrInvalidState = errors.New("trade is not pending")

	// ErrTransferFailed wraps a ledger rejection (ownership, approval,
	// or insufficient balance). The operation it aborts leaves no
	// partial state behind.
	ErrTransferFailed = errors.New("asset transfer failed")
)
