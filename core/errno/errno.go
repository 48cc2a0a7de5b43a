package errno

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how callers must react to them.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindValidation
	KindLedgerUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state_transition"
	case KindValidation:
		return "validation_error"
	case KindLedgerUnavailable:
		return "ledger_unavailable"
	default:
		return "internal"
	}
}

// Errno defines the error code logic
type Errno struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Errno) Unwrap() error { return e.cause }

// Is matches any Errno carrying the same code, so errors.Is(err, ErrNotReady)
// holds for detailed copies produced by With and Wrap.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t.Code == e.Code
}

// With returns a copy of e with a detail appended to the message.
func (e *Errno) With(format string, args ...interface{}) *Errno {
	c := *e
	c.Message = e.Message + ": " + fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy of e carrying cause.
func (e *Errno) Wrap(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// KindOf returns the kind of the first Errno in err's chain.
func KindOf(err error) Kind {
	var e *Errno
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Decode tries to convert an error to a code and message
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}
	var e *Errno
	if errors.As(err, &e) {
		return e.Code, e.Error()
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = &Errno{Kind: KindInternal, Code: 0, Message: "Success"}
	InternalServerError = &Errno{Kind: KindInternal, Code: 10001, Message: "Internal server error"}
	ErrBind             = &Errno{Kind: KindValidation, Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = &Errno{Kind: KindInternal, Code: 10004, Message: "Database error"}
	ErrStockMismatch    = &Errno{Kind: KindInternal, Code: 10005, Message: "material stock does not cover the reservation"}
)

// Validation (20000+)
var (
	ErrValidation      = &Errno{Kind: KindValidation, Code: 20001, Message: "validation error"}
	ErrInvalidWallet   = &Errno{Kind: KindValidation, Code: 20002, Message: "invalid wallet address"}
	ErrUnknownMaterial = &Errno{Kind: KindValidation, Code: 20003, Message: "unknown material type"}
	ErrMissingID       = &Errno{Kind: KindValidation, Code: 20004, Message: "nfcTagId or qrCode is required"}
)

// Lookup (30000+)
var (
	ErrAssetNotFound    = &Errno{Kind: KindNotFound, Code: 30101, Message: "asset not found"}
	ErrArtPieceNotFound = &Errno{Kind: KindNotFound, Code: 30102, Message: "art piece not found"}
	ErrOrderNotFound    = &Errno{Kind: KindNotFound, Code: 30103, Message: "order not found"}
)

// State machine (40000+)
var (
	ErrAlreadyProcessed    = &Errno{Kind: KindInvalidState, Code: 40101, Message: "asset already processed"}
	ErrNotReady            = &Errno{Kind: KindInvalidState, Code: 40102, Message: "asset not ready"}
	ErrInvalidTransition   = &Errno{Kind: KindInvalidState, Code: 40103, Message: "invalid status transition"}
	ErrDuplicateProcessing = &Errno{Kind: KindInvalidState, Code: 40104, Message: "asset already has a processing record"}
	ErrNotForSale          = &Errno{Kind: KindInvalidState, Code: 40201, Message: "item is not available for sale"}
	ErrNoToken             = &Errno{Kind: KindInvalidState, Code: 40202, Message: "item has no ledger token"}
	ErrInsufficientStock   = &Errno{Kind: KindInvalidState, Code: 40203, Message: "insufficient material stock"}
	ErrOrderInProgress     = &Errno{Kind: KindInvalidState, Code: 40204, Message: "another order for this item is in progress"}
	ErrAlreadyTokenized    = &Errno{Kind: KindInvalidState, Code: 40205, Message: "asset already has a ledger token"}
)

// Ledger (50000+)
var (
	ErrLedgerUnavailable = &Errno{Kind: KindLedgerUnavailable, Code: 50001, Message: "ledger unavailable"}
)
