package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownChannel is returned for ids outside 1..ChannelCount.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrRejected is wrapped by every RejectedError.
	ErrRejected = errors.New("command rejected")
	// ErrInvalidArgument is returned when a command's parameters are malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RejectedError reports a command that failed its guard. The channel is
// left untouched.
type RejectedError struct {
	Command   Command
	ChannelID int
	State     State
	Reason    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("channel %d: %s rejected: %s", e.ChannelID, e.Command, e.Reason)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// Channel error messages shown to the operator.
const (
	MsgReadingInterrupted = "Reading interrupted — result invalid"
	MsgNotReinserted      = "Test interrupted — cassette not reinserted"
	msgReadingFailed      = "Reading failed — "
)
