// Package skerr provides functions for creating and wrapping errors that
// carry the location where they were created.
//
// Errors returned from this package print their stack trace when formatted
// with %+v. errors.Is and errors.As see through the wrapping.
package skerr

import (
	"github.com/pkg/errors"
)

// Fmt is like fmt.Errorf, but records the call stack.
func Fmt(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Wrap records the call stack of the caller on err. Returns nil if err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// Wrapf adds context to err and records the call stack. Returns nil if err
// is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Unwrap returns the innermost error, i.e. the error originally passed to
// Wrap or Wrapf.
func Unwrap(err error) error {
	return errors.Cause(err)
}
