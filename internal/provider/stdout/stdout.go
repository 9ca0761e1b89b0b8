// Package stdout implements a Provider that prints emails to standard
// output instead of delivering them. It backs dry runs: the handler routes
// messages here whenever delivery is suppressed.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/citypay/mail-handler/internal/mail"
)

// Provider prints email messages to stdout in a human-readable format and
// returns a synthetic delivery identifier.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the message and returns a "dry-run-" prefixed identifier.
// It never fails.
func (p *Provider) Send(_ context.Context, msg *mail.Message) (string, error) {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("From: %s\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.To, ", ")))

	if len(msg.Cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\n", strings.Join(msg.Cc, ", ")))
	}
	if len(msg.Bcc) > 0 {
		b.WriteString(fmt.Sprintf("Bcc: %s\n", strings.Join(msg.Bcc, ", ")))
	}
	if msg.ReplyTo != "" {
		b.WriteString(fmt.Sprintf("Reply-To: %s\n", msg.ReplyTo))
	}

	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))

	if msg.HTMLBody != "" {
		b.WriteString("Body (html):\n")
		b.WriteString(msg.HTMLBody + "\n")
	} else {
		b.WriteString("Body (text):\n")
		b.WriteString(msg.TextBody + "\n")
	}

	b.WriteString("========================================\n")

	// A write error is not a delivery failure; dry runs always succeed.
	fmt.Fprint(p.writer, b.String())

	return "dry-run-" + uuid.NewString(), nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}
