package export

import (
	"errors"
	"fmt"
	"strings"
)

// CaptureError wraps a Renderer failure during any capture call.
type CaptureError struct {
	Target string
	Frame  int // zero-based frame index for sequence captures, -1 otherwise
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("capture %q frame %d: %v", e.Target, e.Frame, e.Err)
	}
	return fmt.Sprintf("capture %q: %v", e.Target, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// EncodeError wraps an encoder failure, including resource exhaustion.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DeliveryError wraps a download, clipboard or print-surface failure.
type DeliveryError struct {
	Mode string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Mode, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// UnsupportedOptionError describes an option that has no meaning for the
// requested format. It is reported for logging only and never fails an
// export.
type UnsupportedOptionError struct {
	Format Format
	Option string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("option %s is ignored for format %s", e.Option, e.Format)
}

// ValidationError lists the problems found in a request before any capture.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid export request: " + strings.Join(e.Problems, "; ")
}

// Stage names the pipeline stage an error belongs to, for logs and metrics.
func Stage(err error) string {
	var (
		captureErr    *CaptureError
		encodeErr     *EncodeError
		deliveryErr   *DeliveryError
		validationErr *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &captureErr):
		return "capture"
	case errors.As(err, &encodeErr):
		return "encode"
	case errors.As(err, &deliveryErr):
		return "delivery"
	default:
		return "unknown"
	}
}
