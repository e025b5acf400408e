package model

// Record is one mailbox message normalized into the flat export schema.
// Every field is a plain string so JSONL consumers never see null; absent
// fields are empty strings.
type Record struct {
	Source       string `json:"source"`
	MessageClass string `json:"message_class"`
	From         string `json:"from"`
	To           string `json:"to"`
	Cc           string `json:"cc"`
	Subject      string `json:"subject"`
	Date         string `json:"date"`
	MessageID    string `json:"message_id"`
	Body         string `json:"body"`
}

// Attachment is a binary payload pulled out of a message, tagged with the
// sanitized basename of the folder it was found in.
type Attachment struct {
	Folder string
	Name   string
	Data   []byte
}

// ChatTurn is one speaker's utterance reconstructed from an embedded
// Teams/Skype transcript. Exactly one of Sender and SenderEmail is set for a
// parsed turn; both are absent when IsParsed is false.
type ChatTurn struct {
	SourceFile     string `json:"source_file"`
	ConversationID string `json:"conversation_id"`
	Subject        string `json:"subject"`
	OutlookDate    string `json:"outlook_date"`
	Platform       string `json:"platform"`
	Sender         string `json:"sender,omitempty"`
	SenderEmail    string `json:"sender_email,omitempty"`
	MessageTime    string `json:"message_time,omitempty"`
	Text           string `json:"text"`
	IsParsed       bool   `json:"is_parsed"`
}

// Warning records a recoverable failure encountered during traversal. The
// context string identifies the operation and location that failed.
type Warning struct {
	Context string
	Message string
}

func (w Warning) String() string {
	return w.Context + ": " + w.Message
}
