// Package request defines the batch send request accepted by the handler
// and the per-message results returned from it.
package request

// Request is the top-level input for one handler invocation. It is treated
// as immutable once handed to the handler.
type Request struct {
	Verification *VerificationSettings `json:"verification"`
	Mail         []MailItem            `json:"mail"`

	// Brand is the default brand name applied to every item that does not
	// name its own.
	Brand    string            `json:"brand,omitempty"`
	Branding []BrandDefinition `json:"branding,omitempty"`

	// Deliver suppresses external delivery when explicitly false. Unset
	// means deliver.
	Deliver *bool `json:"deliver,omitempty"`
}

// ShouldDeliver reports whether messages should actually be handed to the
// delivery service, defaulting to true.
func (r *Request) ShouldDeliver() bool {
	return r.Deliver == nil || *r.Deliver
}

// VerificationSettings carries the reCAPTCHA challenge material for the
// invocation.
type VerificationSettings struct {
	Enabled  bool   `json:"enabled"`
	Response string `json:"response,omitempty"`
	Secret   string `json:"secret,omitempty"`
	RemoteIP string `json:"remoteip,omitempty"`
}

// MailItem describes one message in the batch.
type MailItem struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	ReplyTo string   `json:"replyTo,omitempty"`

	// Brand overrides the request-level default brand for this item.
	Brand string `json:"brand,omitempty"`
}

// BrandDefinition names a set of asset files used to wrap a plain body
// into a styled HTML document. Each path is optional.
type BrandDefinition struct {
	Name   string `json:"name" yaml:"name"`
	CSS    string `json:"css,omitempty" yaml:"css"`
	Header string `json:"header,omitempty" yaml:"header"`
	Footer string `json:"footer,omitempty" yaml:"footer"`
}

// Result is the outcome of one MailItem. Message holds the delivery
// identifier on success and the error text on failure; the originating
// MailItem is deliberately not included.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Subject string `json:"subject"`
}
