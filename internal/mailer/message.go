package mailer

import "context"

// Attachment is a file carried inside a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a composed email, handed to exactly one Transport.
type Message struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Result describes a successful dispatch.
type Result struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
}

// Transport delivers a Message through one provider.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) (Result, error)
}
