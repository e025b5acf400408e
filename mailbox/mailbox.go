// Package mailbox defines the reader capability consumed by the extraction
// pipeline. A container format (PST, mbox, a live IMAP account) is plugged in
// by implementing Container, Folder and Message; the pipeline itself never
// touches container bytes directly.
package mailbox

import (
	"fmt"
	"time"
)

// EntryID identifies a folder or message node within a container.
type EntryID uint64

// Container is a single archived mailbox being processed.
type Container interface {
	// Name returns the container's display name, used as the root of the
	// output layout.
	Name() string

	// Root returns the root folder of the message store.
	Root() (Folder, error)

	Close() error
}

// Folder is one node of the container's folder tree.
type Folder interface {
	DisplayName() string

	// SubFolderEntries lists the ids of this folder's child folders.
	SubFolderEntries() ([]EntryID, error)

	// SubFolder resolves a child folder by id. A nil folder with a nil error
	// means the entry is absent and should be skipped silently.
	SubFolder(id EntryID) (Folder, error)

	// MessageEntries lists the ids of the messages held by this folder.
	MessageEntries() ([]EntryID, error)

	// Message resolves a message by id. A nil message with a nil error means
	// the entry is absent and should be skipped silently.
	Message(id EntryID) (Message, error)
}

// Message exposes the structured accessors of a single mailbox message. Every
// accessor is fallible; callers degrade missing fields to empty values rather
// than aborting.
type Message interface {
	Subject() (string, error)
	Body() (string, error)
	BodyHTML() (string, error)

	// DeliveryTime returns the message delivery or creation time, or the zero
	// time when neither is recorded.
	DeliveryTime() (time.Time, error)

	// Properties returns the message's raw property set.
	Properties() (PropertySet, error)

	// Recipients returns one property set per recipient entry.
	Recipients() ([]PropertySet, error)

	AttachmentCount() (int, error)

	// Attachment returns the property set of the attachment at the given
	// index, including its binary payload.
	Attachment(index int) (PropertySet, error)
}

// PropertySet is the container format's generic key-to-value attribute bag.
// The same logical field may be addressed by several key aliases (numeric
// tag, hex tag, human-readable name), so lookups take a caller-ordered
// candidate list.
type PropertySet map[string]any

// Get returns the first non-nil value among the candidate keys, tried in
// order. Missing keys are never an error.
func (p PropertySet) Get(keys ...string) any {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// GetString is Get rendered as text via AsString.
func (p PropertySet) GetString(keys ...string) string {
	return AsString(p.Get(keys...))
}

// AsString renders a property value as text. Binary values are decoded as
// UTF-8, timestamps as ISO-8601, nil as the empty string.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
