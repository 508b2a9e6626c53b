// Package rerr provides Relay's error taxonomy (NotFound, Overloaded,
// ExternalFault, InvalidInput, ProcessorFault, Cancelled, Fatal), in the
// style of the teacher's cmn/cos typed-error + Errs batch collector.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package rerr

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

type (
	NotFoundError struct{ What string }

	OverloadedError struct{ Reason string }

	ExternalFaultError struct {
		Op  string
		Err error
	}

	InvalidInputError struct{ Reason string }

	ProcessorFaultError struct {
		Processor string
		Err       error
	}

	CancelledError struct{ Op string }

	FatalError struct {
		Op  string
		Err error
	}
)

func (e *NotFoundError) Error() string { return e.What + " not found" }

func (e *OverloadedError) Error() string { return "overloaded: " + e.Reason }

func (e *ExternalFaultError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *ExternalFaultError) Unwrap() error { return e.Err }

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Reason }

func (e *ProcessorFaultError) Error() string {
	return fmt.Sprintf("processor %s failed: %v", e.Processor, e.Err)
}
func (e *ProcessorFaultError) Unwrap() error { return e.Err }

func (e *CancelledError) Error() string { return e.Op + " cancelled" }

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

func NewNotFound(format string, a ...any) *NotFoundError {
	return &NotFoundError{What: fmt.Sprintf(format, a...)}
}

func NewOverloaded(format string, a ...any) *OverloadedError {
	return &OverloadedError{Reason: fmt.Sprintf(format, a...)}
}

func NewExternalFault(op string, err error) *ExternalFaultError {
	return &ExternalFaultError{Op: op, Err: errors.WithStack(err)}
}

func NewInvalidInput(format string, a ...any) *InvalidInputError {
	return &InvalidInputError{Reason: fmt.Sprintf(format, a...)}
}

func NewProcessorFault(processor string, err error) *ProcessorFaultError {
	return &ProcessorFaultError{Processor: processor, Err: err}
}

func NewCancelled(op string) *CancelledError { return &CancelledError{Op: op} }

func NewFatal(op string, err error) *FatalError {
	return &FatalError{Op: op, Err: errors.WithStack(err)}
}

func IsNotFound(err error) bool       { var e *NotFoundError; return errors.As(err, &e) }
func IsOverloaded(err error) bool     { var e *OverloadedError; return errors.As(err, &e) }
func IsExternalFault(err error) bool  { var e *ExternalFaultError; return errors.As(err, &e) }
func IsInvalidInput(err error) bool   { var e *InvalidInputError; return errors.As(err, &e) }
func IsProcessorFault(err error) bool { var e *ProcessorFaultError; return errors.As(err, &e) }
func IsCancelled(err error) bool      { var e *CancelledError; return errors.As(err, &e) }
func IsFatal(err error) bool          { var e *FatalError; return errors.As(err, &e) }

// Batch accumulates up to maxBatchErrs distinct errors without blocking
// the caller on a per-item failure, for loops where one bad item must not
// abort the rest. No package in this repository uses it.
type Batch struct {
	mu   sync.Mutex
	errs []error
}

const maxBatchErrs = 8

func (b *Batch) Add(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.errs {
		if e.Error() == err.Error() {
			return
		}
	}
	if len(b.errs) < maxBatchErrs {
		b.errs = append(b.errs, err)
	}
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.errs)
}

// Err returns nil if the batch is empty, the sole error if there is one, or
// a joined summary error otherwise.
func (b *Batch) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch len(b.errs) {
	case 0:
		return nil
	case 1:
		return b.errs[0]
	default:
		first := b.errs[0]
		return fmt.Errorf("%w (and %d more error(s))", first, len(b.errs)-1)
	}
}
