package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCode       = errors.New("invalid room code")
	ErrRoomNotFound      = errors.New("room not found")
	ErrPeerDisconnected  = errors.New("peer disconnected")
	ErrSignalingError    = errors.New("signaling server error")
	ErrChannelNotOpen    = errors.New("channel not open")
	ErrTransferBusy      = errors.New("transfer already in progress")
	ErrNoPendingOffer    = errors.New("no pending file offer")
	ErrTransferDeclined  = errors.New("receiver declined the transfer")
	ErrTransferCancelled = errors.New("transfer cancelled")
	ErrBufferTimeout     = errors.New("buffer drain timeout")
)

// TransferError carries the failing operation and optional file name
// around a wrapped cause.
type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}
