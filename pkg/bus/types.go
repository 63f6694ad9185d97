package bus

type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a reply payload: one text segment plus an optional
// image part referenced by URL. Channels that cannot attach images fall
// back to appending the URL to the text.
type OutboundMessage struct {
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}
