package speech

import (
	"errors"
)

// Kind tags every failure the pipeline can produce. The set is closed so
// callers can tell fatal failures from degraded ones without reading messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindMissingDefaultSpeaker
	KindStaging
	KindSynthesis
	KindPostProcessing
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindMissingDefaultSpeaker:
		return "missing_default_speaker"
	case KindStaging:
		return "staging"
	case KindSynthesis:
		return "synthesis"
	case KindPostProcessing:
		return "post_processing"
	default:
		return "unknown"
	}
}

// Fatal reports whether a failure of this kind aborts the request.
func (k Kind) Fatal() bool {
	return k != KindPostProcessing
}

var (
	ErrTextRequired          = errors.New("text: field required")
	ErrTextTooLong           = errors.New("text is too long")
	ErrUploadTooLarge        = errors.New("speaker_wav upload is too large")
	ErrDefaultSpeakerMissing = errors.New("default speaker reference not found")
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(kind Kind, err error) *Error {
	return &Error{
		Kind: kind,
		Err:  err,
	}
}

func ErrKind(e error) Kind {
	var err *Error
	if ok := errors.As(e, &err); ok {
		return err.Kind
	}

	return KindUnknown
}
