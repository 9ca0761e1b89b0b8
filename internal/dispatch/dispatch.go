// Package dispatch converts one mail item into a provider call and reports
// the outcome through success/error callbacks.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/citypay/mail-handler/internal/brand"
	"github.com/citypay/mail-handler/internal/mail"
	"github.com/citypay/mail-handler/internal/provider"
	"github.com/citypay/mail-handler/internal/request"
)

// Dispatcher prepares and delivers individual mail items. A live provider
// handles real sends; the dry-run provider takes over when the request
// suppresses delivery, so every item still produces an outcome.
type Dispatcher struct {
	live   provider.Provider
	dryRun provider.Provider
	brands *brand.Resolver
}

// New creates a Dispatcher over the given providers and brand resolver.
func New(live, dryRun provider.Provider, brands *brand.Resolver) *Dispatcher {
	return &Dispatcher{
		live:   live,
		dryRun: dryRun,
		brands: brands,
	}
}

// Send prepares the message for one item and delivers it, invoking exactly
// one of onError or onSuccess. Preparation problems are routed to onError
// and never propagate to the caller.
func (d *Dispatcher) Send(ctx context.Context, req *request.Request, item *request.MailItem, onError func(error), onSuccess func(string)) {
	msg, err := d.prepare(req, item)
	if err != nil {
		onError(err)
		return
	}

	p := d.live
	if !req.ShouldDeliver() {
		slog.Info("delivery disabled, routing to dry run",
			"subject", item.Subject,
		)
		p = d.dryRun
	}

	id, err := p.Send(ctx, msg)
	if err != nil {
		onError(err)
		return
	}
	onSuccess(id)
}

// prepare builds the provider-facing message for an item. The body is
// encoded as exactly one of HTML or plain text:
//
//  1. an applicable brand forces HTML and runs the body through the
//     templater (complete documents pass through unchanged);
//  2. without a brand, a body starting with "<" is sent as HTML as-is;
//  3. anything else is plain text.
//
// A panic while building is converted into an error so the caller's
// onError path handles it like any other preparation failure.
func (d *Dispatcher) prepare(req *request.Request, item *request.MailItem) (msg *mail.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to build message for %q: %v", item.Subject, r)
		}
	}()

	msg = &mail.Message{
		From:    item.From,
		To:      item.To,
		Cc:      item.CC,
		Bcc:     item.BCC,
		ReplyTo: item.ReplyTo,
		Subject: item.Subject,
	}

	name := item.Brand
	if name == "" {
		name = req.Brand
	}

	if def := brand.Lookup(name, req.Branding); def != nil {
		assets, loadErr := d.brands.Load(def)
		if loadErr != nil {
			return nil, loadErr
		}
		html, wrapErr := brand.Htmlify(item.Body, assets)
		if wrapErr != nil {
			return nil, wrapErr
		}
		msg.HTMLBody = html
	} else if strings.HasPrefix(item.Body, "<") {
		msg.HTMLBody = item.Body
	} else {
		msg.TextBody = item.Body
	}

	return msg, nil
}
