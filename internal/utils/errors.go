package utils

import (
	"github.com/samber/oops"
)

// Code is the machine-readable class of a failure.
type Code string

const (
	CodeProbeFailure       Code = "probe.failure"
	CodePersistenceFailure Code = "persistence.failure"
	CodeModelLoadFailure   Code = "model.load.failure"
	CodeModelTrainFailure  Code = "model.train.failure"
	CodeDispatchFailure    Code = "dispatch.failure"
	CodeLoopFatal          Code = "loop.fatal"

	CodeConfigReadFailure  Code = "config.read.failure"
	CodeConfigParseFailure Code = "config.parse.invalid_format"
	CodeConfigInvalidValue Code = "config.validate.invalid_value"
	CodeServerStartFailure Code = "server.start.failure"
)

// New returns a coded error carrying the supplied key/value context.
func New(code Code, msg string, kv ...any) error {
	return oops.Code(code).With(kv...).New(msg)
}

// Wrap attaches a code and message to err. It returns nil when err is nil.
func Wrap(err error, code Code, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(kv...).Wrapf(err, "%s", msg)
}

// CodeOf extracts the code of the outermost coded error in the chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	}
	return ""
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ContextOf returns the key/value context attached to err.
func ContextOf(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}
