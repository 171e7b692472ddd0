package mailer

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// Error codes attached to dispatch failures.
const (
	CodeTimeout    = "ETIMEDOUT"
	CodeConnection = "ECONNECTION"
	CodeSocket     = "ESOCKET"
	CodeConfig     = "ECONFIG"
	CodeCanceled   = "ECANCELED"
	CodeMessage    = "EMESSAGE"
	CodeSMTP       = "ESMTP"
)

// Error is the structured failure returned by every Transport.
type Error struct {
	Message string
	Detail  string
	Code    string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err looks like a connection that could not be
// established or timed out.
func IsTimeout(err error) bool {
	_, ok := timeoutCode(err)
	return ok
}

func timeoutCode(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var me *Error
	if errors.As(err, &me) {
		switch me.Code {
		case CodeTimeout, CodeConnection, CodeSocket:
			return me.Code, true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return CodeTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return CodeConnection, true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return CodeSocket, true
	}

	if strings.Contains(strings.ToLower(err.Error()), "timed out") {
		return CodeTimeout, true
	}
	return "", false
}
