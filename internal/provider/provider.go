// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"

	"github.com/citypay/mail-handler/internal/mail"
)

// Provider is the interface that email delivery backends must implement.
// Each provider hands a prepared message to the target service
// (e.g., AWS SES, Microsoft Graph, or stdout for dry runs).
type Provider interface {
	// Send delivers an email message through this provider. It returns
	// the service's opaque delivery identifier, or an error if the
	// delivery fails.
	Send(ctx context.Context, msg *mail.Message) (string, error)

	// Name returns the human-readable name of this provider.
	Name() string
}
