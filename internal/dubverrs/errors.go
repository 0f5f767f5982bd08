// Package dubverrs defines the error taxonomy shared across every stage of
// the dubbing pipeline.
package dubverrs

import "fmt"

// Kind classifies a failure so callers can decide whether to retry, fall
// back, or fail the enclosing stage.
type Kind string

const (
	KindCancelled          Kind = "cancelled"
	KindConcurrencyTimeout Kind = "concurrency_timeout"
	KindProviderHTTP       Kind = "provider_http"
	KindProviderTransport  Kind = "provider_transport"
	KindValidation         Kind = "validation"
	KindMediaTool          Kind = "media_tool"
	KindNoAudio            Kind = "no_audio"
	KindConfigMissing      Kind = "config_missing"
	KindStorage            Kind = "storage"
)

// Error is the single error type used across the pipeline. Stage carries the
// name of the stage in progress when the error occurred, if any.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on Kind alone via a zero-value sentinel of the
// same Kind, e.g. errors.Is(err, dubverrs.Cancelled("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, stage, msg string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: msg, Err: err}
}

func Cancelled(stage string) *Error {
	return newErr(KindCancelled, stage, "operation cancelled", nil)
}

func ConcurrencyTimeout(stage string) *Error {
	return newErr(KindConcurrencyTimeout, stage, "timed out waiting for a concurrency slot", nil)
}

func ProviderHTTP(stage string, statusCode int, bodyHead string) *Error {
	return newErr(KindProviderHTTP, stage, fmt.Sprintf("status %d: %s", statusCode, bodyHead), nil)
}

func ProviderTransport(stage string, err error) *Error {
	return newErr(KindProviderTransport, stage, err.Error(), err)
}

func Validation(stage, msg string) *Error {
	return newErr(KindValidation, stage, msg, nil)
}

func MediaTool(stage, stderr string) *Error {
	return newErr(KindMediaTool, stage, stderr, nil)
}

func NoAudio(stage string) *Error {
	return newErr(KindNoAudio, stage, "no completed TTS audio available", nil)
}

func ConfigMissing(stage, msg string) *Error {
	return newErr(KindConfigMissing, stage, msg, nil)
}

func Storage(stage string, err error) *Error {
	return newErr(KindStorage, stage, err.Error(), err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	for {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
	return e.Kind == kind
}
