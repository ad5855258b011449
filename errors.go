package zenoh

import "errors"

// Codec errors: returned by the primitive and message codec layers.
var (
	ErrShortInput                = errors.New("zenoh: short input")
	ErrBufferTooSmall            = errors.New("zenoh: buffer too small")
	ErrInvalidDiscriminant       = errors.New("zenoh: invalid discriminant")
	ErrUnknownMandatoryExtension = errors.New("zenoh: unknown mandatory extension")
	ErrNonMinimalEncoding        = errors.New("zenoh: non-minimal zint encoding")
)

// Transport errors: returned by the batch, session and establishment layers.
var (
	ErrTransportTooSmall = errors.New("zenoh: transport buffer too small")
	ErrTransportIsFull   = errors.New("zenoh: transport buffer is full")
	ErrMessageTooLarge   = errors.New("zenoh: message too large for batch")
	ErrInvalidAttribute  = errors.New("zenoh: invalid attribute")
	ErrStateCantHandle   = errors.New("zenoh: state cannot handle message")
	ErrCouldNotRead      = errors.New("zenoh: could not read from host")
	ErrCouldNotWrite     = errors.New("zenoh: could not write to host")
	ErrInvalidConfig     = errors.New("zenoh: invalid configuration")
)

// ErrCollectionIsFull belongs to the broker collaborator (outside the
// core); nothing in this module returns it.
var ErrCollectionIsFull = errors.New("zenoh: collection is full")
