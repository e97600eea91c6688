// Package notice builds the transient banners shown after an operation.
package notice

import (
	"errors"
	"strings"
	"time"

	"github.com/diewo77/go-backoffice/validation"
)

// Kind is the banner style.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// How long a banner stays up before clearing itself.
const (
	SuccessTTL = 3 * time.Second
	ErrorTTL   = 5 * time.Second
)

// FallbackMessage is shown when an error carries nothing readable.
const FallbackMessage = "Something went wrong. Please try again."

// Banner is a dismissible, auto-clearing message.
type Banner struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Visible reports whether the banner still shows at now.
func (b Banner) Visible(now time.Time) bool {
	return b.Message != "" && now.Before(b.ExpiresAt)
}

// Success builds a success banner.
func Success(message string, now time.Time) Banner {
	return Banner{Kind: KindSuccess, Message: message, ExpiresAt: now.Add(SuccessTTL)}
}

// Error builds an error banner from err.
func Error(err error, now time.Time) Banner {
	return Banner{Kind: KindError, Message: MessageFor(err), ExpiresAt: now.Add(ErrorTTL)}
}

// MessageFor renders err for the user. Validation failures list the fields;
// errors without a message fall back to FallbackMessage.
func MessageFor(err error) string {
	if err == nil {
		return FallbackMessage
	}
	var v validation.Violations
	if errors.As(err, &v) && !v.Empty() {
		return "Please check the form: " + strings.TrimPrefix(v.Error(), "validation failed: ")
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return FallbackMessage
	}
	return msg
}
