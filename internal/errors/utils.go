package errors

import (
	"errors"
	"maps"
)

// Wrap wraps an error with additional context, creating an AppError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	if err == nil {
		return nil
	}

	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       ae,
			Context:     maps.Clone(ae.Context),
			Component:   ae.Component,
			FilePath:    ae.FilePath,
			Recoverable: ae.Recoverable,
		}
	}

	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeBuild,
	}
}

// WrapBuild wraps an error as a build error with component context
func WrapBuild(err error, code, message, component string) *AppError {
	ae := Wrap(err, ErrorTypeBuild, code, message)
	if ae != nil {
		ae.Component = component
	}
	return ae
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *AppError {
	ae := Wrap(err, ErrorTypeIO, code, message)
	if ae != nil {
		ae.Recoverable = false
	}
	return ae
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, message string) *AppError {
	ae := Wrap(err, ErrorTypeConfig, ErrCodeConfigInvalid, message)
	if ae != nil {
		ae.Recoverable = false
	}
	return ae
}
