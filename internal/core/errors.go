package core

import (
	"errors"
	"fmt"
)

// Domain failures are a closed set so API handlers can map each one to an
// HTTP status without string matching. The sentinel text doubles as the wire
// error code.
var (
	ErrPrinterNotFound              = errors.New("printer_not_found")
	ErrPrinterUnavailable           = errors.New("printer_unavailable")
	ErrDefaultPrinterMissing        = errors.New("default_printer_missing")
	ErrUnsupportedProtocol          = errors.New("unsupported_protocol")
	ErrSourceNotAllowed             = errors.New("source_not_allowed")
	ErrDefaultPrinterDisableBlocked = errors.New("default_printer_disable_blocked")
	ErrDefaultPrinterDisabled       = errors.New("default_printer_disabled")
	ErrJobNotFound                  = errors.New("job_not_found")
)

// ValidationError names the offending field of a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
