// Package handler orchestrates one batch-send invocation: validation,
// optional human verification, fan-out dispatch and result aggregation.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/citypay/mail-handler/internal/dispatch"
	"github.com/citypay/mail-handler/internal/request"
)

// ErrValidation marks a malformed request. The batch never starts.
var ErrValidation = errors.New("invalid request")

// ErrVerification is the fixed error reported when the human-verification
// check does not succeed, for any reason. The batch never starts.
var ErrVerification = errors.New("human verification failed")

// Verifier gates dispatch behind a human-verification check. A nil return
// allows the batch; any error aborts it.
type Verifier interface {
	Verify(ctx context.Context, settings *request.VerificationSettings) error
}

// ErrorFunc receives the single batch-aborting error of an invocation.
type ErrorFunc func(error)

// CompletionFunc receives the ordered per-item results of a completed
// batch, one Result per requested mail item.
type CompletionFunc func([]request.Result)

// Handler runs batch-send invocations. Collaborators are injected at
// construction so tests can substitute them.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	verifier   Verifier
}

// New creates a Handler over the given dispatcher and verifier.
func New(d *dispatch.Dispatcher, v Verifier) *Handler {
	return &Handler{
		dispatcher: d,
		verifier:   v,
	}
}

// outcome tracks one item's dispatch while the batch is in flight. The
// item reference stays internal; results handed to the caller carry only
// the subject.
type outcome struct {
	item    *request.MailItem
	success bool
	message string
}

// Handle runs one invocation. Exactly one of onError and onComplete is
// called: onError once for a batch-aborting failure (validation or
// verification), onComplete once with len(req.Mail) results otherwise.
// Individual send failures are recorded in their result and never abort
// the batch.
func (h *Handler) Handle(ctx context.Context, req *request.Request, onError ErrorFunc, onComplete CompletionFunc) {
	log := slog.With("invocation", uuid.NewString())

	if err := request.Validate(req); err != nil {
		log.Warn("request rejected", "error", err)
		onError(fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}

	if req.Verification.Enabled {
		if err := h.verifier.Verify(ctx, req.Verification); err != nil {
			log.Warn("verification did not pass", "error", err)
			onError(ErrVerification)
			return
		}
	}

	// Fan-out. Each outcome slot is written by exactly one dispatch
	// callback; the wait group is the countdown latch over the batch.
	outcomes := make([]outcome, len(req.Mail))

	var wg sync.WaitGroup
	wg.Add(len(req.Mail))

	for i := range req.Mail {
		o := &outcomes[i]
		o.item = &req.Mail[i]

		go func() {
			defer wg.Done()
			h.dispatcher.Send(ctx, req, o.item,
				func(err error) {
					o.message = err.Error()
					log.Warn("send failed",
						"subject", o.item.Subject,
						"error", err,
					)
				},
				func(id string) {
					o.success = true
					o.message = id
				},
			)
		}()
	}

	wg.Wait()

	results := make([]request.Result, len(outcomes))
	sent := 0
	for i := range outcomes {
		results[i] = request.Result{
			Success: outcomes[i].success,
			Message: outcomes[i].message,
			Subject: outcomes[i].item.Subject,
		}
		if outcomes[i].success {
			sent++
		}
	}

	log.Info("batch complete",
		"requested", len(results),
		"succeeded", sent,
	)

	onComplete(results)
}
