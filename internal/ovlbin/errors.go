package ovlbin

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure causes. Every error returned by Read wraps one of these.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrMagicMismatch    = errors.New("magic mismatch")
	ErrFieldTooLarge    = errors.New("field too large")
	ErrUnsupportedEntry = errors.New("unsupported entry type")
)

// DecodeError describes a failed overlay decode. Trail holds the labels of
// the fields being read when the decode stopped, innermost first.
type DecodeError struct {
	Version int      // Detected format version, 0 if detection failed
	Trail   []string // Field context, innermost first
	Err     error    // Underlying cause
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("reading ggv_bin failed (version: %d, context: %q)",
		e.Version, strings.Join(e.Trail, ", "))
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decodeErr builds a DecodeError for a single field. Read fills in the
// version before the error reaches the caller.
func decodeErr(cause error, field string) *DecodeError {
	return &DecodeError{Trail: []string{field}, Err: cause}
}
