package live

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	// KindConfiguration: no usable credential or invalid setup; no session was opened.
	KindConfiguration Kind = iota + 1
	// KindSession: the transport or session reported a failure.
	KindSession
	// KindProtocol: a turn could not be converted or a send was rejected.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindSession:
		return "session"
	case KindProtocol:
		return "protocol"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrSession       = errors.New("session error")
	ErrProtocol      = errors.New("protocol error")

	ErrSessionClosed = errors.New("session closed")
)

// Error is the error reported on the output stream of a bridge.
type Error struct {
	Kind Kind
	// Status is a canonical status name, e.g. INVALID_ARGUMENT.
	Status string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrSession:
		return e.Kind == KindSession
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

func configurationError(msg string, err error) error {
	return &Error{Kind: KindConfiguration, Status: "INVALID_ARGUMENT", Msg: msg, Err: errors.WithStack(err)}
}

func sessionError(msg string, err error) error {
	return &Error{Kind: KindSession, Status: "UNAVAILABLE", Msg: msg, Err: errors.WithStack(err)}
}

func protocolError(msg string, err error) error {
	return &Error{Kind: KindProtocol, Status: "INTERNAL", Msg: msg, Err: errors.WithStack(err)}
}

// KindOf returns the kind of a bridge error, or 0 for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
