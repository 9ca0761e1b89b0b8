// Package mail defines the message model handed to delivery providers.
package mail

// Message is a fully prepared outbound email. Exactly one of TextBody or
// HTMLBody is set; the dispatcher decides which before a provider sees it.
type Message struct {
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}
