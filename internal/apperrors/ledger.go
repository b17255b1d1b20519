package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Rect is a rectangular region of a ledger table: column and row of the top-left cell
// plus its extent. Row -1 addresses the header, Col -1 addresses the row index.
type Rect struct {
	Col    int `json:"col"`
	Row    int `json:"row"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Cell returns a single-cell region.
func Cell(col, row int) Rect {
	return Rect{Col: col, Row: row, Width: 1, Height: 1}
}

// LedgerError is returned by validation and computation of a ledger. It carries the
// offending locations so a caller can highlight them without re-scanning the data.
type LedgerError struct {
	Kind      error  // one of ErrSchema, ErrIndex, ErrType, ErrBusinessRule, ErrConvergence
	Err       error  // specific cause, e.g. ErrOverselling
	Message   string // optional detail
	Locations []Rect
	// Soft marks an error confined to the tail row that is still being composed.
	Soft bool
}

// NewLedgerError builds a LedgerError of the given kind and cause.
func NewLedgerError(kind, cause error, locations ...Rect) *LedgerError {
	return &LedgerError{Kind: kind, Err: cause, Locations: locations}
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Locations) > 0 {
		locs := make([]string, len(e.Locations))
		for i, r := range e.Locations {
			locs[i] = fmt.Sprintf("(%d,%d,%d,%d)", r.Col, r.Row, r.Width, r.Height)
		}
		b.WriteString(" at ")
		b.WriteString(strings.Join(locs, " "))
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AsLedgerError extracts a *LedgerError from err.
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// KindName returns the short name of a ledger error kind, used for metrics labels and API payloads.
func KindName(kind error) string {
	switch kind {
	case ErrSchema:
		return "schema"
	case ErrIndex:
		return "index"
	case ErrType:
		return "type"
	case ErrBusinessRule:
		return "business_rule"
	case ErrConvergence:
		return "convergence"
	default:
		return "unknown"
	}
}
