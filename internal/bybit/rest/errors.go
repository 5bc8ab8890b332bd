package rest

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindTransport covers timeouts, connection failures and retryable
	// HTTP statuses. Callers never see it directly: after the retry
	// budget is spent it becomes KindUnavailable.
	KindTransport Kind = iota
	KindAuth
	KindExchange
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindExchange:
		return "exchange"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind     Kind
	Endpoint string
	Status   int
	RetCode  int
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Endpoint, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Endpoint)
}

func (e *Error) Unwrap() error { return e.Err }

func IsAuth(err error) bool        { return hasKind(err, KindAuth) }
func IsExchange(err error) bool    { return hasKind(err, KindExchange) }
func IsUnavailable(err error) bool { return hasKind(err, KindUnavailable) }

func hasKind(err error, kind Kind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
