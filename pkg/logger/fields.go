package logger

const (
	FieldChannel  = "channel"
	FieldChatID   = "chat_id"
	FieldSenderID = "sender_id"
	FieldPreview  = "preview"
	FieldError    = "error"
	FieldPlatform = "platform"

	FieldMessageContentLength = "message_content_length"
)
