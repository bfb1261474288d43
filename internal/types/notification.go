package types

// EmailAddress is a display name plus address.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// EmailMessage is a fully rendered email ready for a provider.
type EmailMessage struct {
	From     EmailAddress `json:"from"`
	To       []string     `json:"to"`
	Subject  string       `json:"subject"`
	BodyHTML string       `json:"body_html,omitempty"`
	BodyText string       `json:"body_text,omitempty"`
}
