package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies failures on the relay path. None of them is fatal to the
// process; each is scoped to one connection or one message.
type Kind string

const (
	// KindDecode is a malformed inbound frame. The frame is dropped.
	KindDecode Kind = "decode"
	// KindPersistence is a failed store write. The message is dropped.
	KindPersistence Kind = "persistence"
	// KindPublish is a failed publish after a successful store write.
	KindPublish Kind = "publish"
	// KindTransport is a read or write failure on the client connection.
	KindTransport Kind = "transport"
	// KindSetup is a failed subscription at connect time.
	KindSetup Kind = "setup"
)

// RelayError carries the failure kind and the operation that produced it.
type RelayError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *RelayError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

func newRelayError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &RelayError{Kind: kind, Op: op, Err: err}
}

// Decode wraps a frame decoding failure.
func Decode(op string, err error) error { return newRelayError(KindDecode, op, err) }

// Persistence wraps a store failure.
func Persistence(op string, err error) error { return newRelayError(KindPersistence, op, err) }

// Publish wraps a channel failure that happened after the message was stored.
func Publish(op string, err error) error { return newRelayError(KindPublish, op, err) }

// Transport wraps a connection read or write failure.
func Transport(op string, err error) error { return newRelayError(KindTransport, op, err) }

// Setup wraps a connect-time failure.
func Setup(op string, err error) error { return newRelayError(KindSetup, op, err) }

// KindOf returns the kind of the first RelayError in err's chain, or "".
func KindOf(err error) Kind {
	var relayErr *RelayError
	if stderrors.As(err, &relayErr) {
		return relayErr.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a RelayError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
