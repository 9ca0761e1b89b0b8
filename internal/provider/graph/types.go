// Package graph implements a Provider that sends emails via the Microsoft Graph API.
package graph

import (
	"github.com/citypay/mail-handler/internal/mail"
)

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message sendMailMessage `json:"message"`
}

// sendMailMessage represents the message portion of a sendMail request.
type sendMailMessage struct {
	Subject       string      `json:"subject"`
	Body          messageBody `json:"body"`
	ToRecipients  []recipient `json:"toRecipients"`
	CcRecipients  []recipient `json:"ccRecipients,omitempty"`
	BccRecipients []recipient `json:"bccRecipients,omitempty"`
	ReplyTo       []recipient `json:"replyTo,omitempty"`
}

// messageBody represents the body of an email message.
type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// recipient represents an email recipient.
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// emailAddress represents an email address in a Graph API request.
type emailAddress struct {
	Address string `json:"address"`
}

// tokenResponse represents the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

// graphError represents the error detail in a Graph API error response.
type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// recipients converts a list of addresses into Graph recipient objects.
func recipients(addrs []string) []recipient {
	out := make([]recipient, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, recipient{EmailAddress: emailAddress{Address: addr}})
	}
	return out
}

// buildSendMailRequest converts a mail.Message into a Graph API sendMail request body.
func buildSendMailRequest(msg *mail.Message) *sendMailRequest {
	body := messageBody{
		ContentType: "text",
		Content:     msg.TextBody,
	}
	if msg.HTMLBody != "" {
		body.ContentType = "html"
		body.Content = msg.HTMLBody
	}

	m := sendMailMessage{
		Subject:       msg.Subject,
		Body:          body,
		ToRecipients:  recipients(msg.To),
		CcRecipients:  recipients(msg.Cc),
		BccRecipients: recipients(msg.Bcc),
	}
	if msg.ReplyTo != "" {
		m.ReplyTo = recipients([]string{msg.ReplyTo})
	}

	return &sendMailRequest{Message: m}
}
