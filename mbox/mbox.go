// Package mbox adapts an mbox archive to the mailbox reader capability: the
// file becomes a container with a single root folder holding every message.
package mbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mboxlib "github.com/emersion/go-mbox"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/vicluzy/pst-extract/mailbox"
)

func init() {
	mailbox.Register(".mbox", Open)
}

// Open reads a whole mbox file into an in-memory container. The container
// name is the file's base name without extension.
func Open(path string) (mailbox.Container, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return New(file, name)
}

// New builds a container from an mbox stream. MIME parsing of individual
// messages is deferred until their accessors are used, so a single mangled
// message degrades to a per-message warning instead of failing the open.
func New(r io.Reader, name string) (*Container, error) {
	mr := mboxlib.NewReader(r)

	var messages []*Message
	for idx := 0; ; idx++ {
		msgReader, err := mr.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("read mbox message %d: %w", idx, err)
		}
		messages = append(messages, &Message{raw: raw})
	}

	return &Container{
		name: name,
		root: &Folder{display: "Inbox", messages: messages},
	}, nil
}

type Container struct {
	name string
	root *Folder
}

func (c *Container) Name() string {
	return c.name
}

func (c *Container) Root() (mailbox.Folder, error) {
	return c.root, nil
}

func (c *Container) Close() error {
	return nil
}

// Folder is the single root folder of an mbox container; mbox files carry no
// folder hierarchy.
type Folder struct {
	display  string
	messages []*Message
}

func (f *Folder) DisplayName() string {
	return f.display
}

func (f *Folder) SubFolderEntries() ([]mailbox.EntryID, error) {
	return nil, nil
}

func (f *Folder) SubFolder(id mailbox.EntryID) (mailbox.Folder, error) {
	return nil, fmt.Errorf("mbox folder has no subfolder %d", id)
}

func (f *Folder) MessageEntries() ([]mailbox.EntryID, error) {
	ids := make([]mailbox.EntryID, len(f.messages))
	for i := range f.messages {
		ids[i] = mailbox.EntryID(i)
	}
	return ids, nil
}

func (f *Folder) Message(id mailbox.EntryID) (mailbox.Message, error) {
	if int(id) >= len(f.messages) {
		return nil, fmt.Errorf("no message entry %d", id)
	}
	return f.messages[id], nil
}

// Message lazily parses one raw RFC 5322 message.
type Message struct {
	raw      []byte
	once     sync.Once
	parsed   parsedMessage
	parseErr error
}

type parsedMessage struct {
	subject     string
	from        string
	to          string
	messageID   string
	date        time.Time
	text        string
	html        string
	rawHeader   string
	recipients  []mailbox.PropertySet
	attachments []mailbox.PropertySet
}

// NewMessage wraps a raw RFC 5322 message. Shared with the imap adapter,
// which fetches the same wire format.
func NewMessage(raw []byte) *Message {
	return &Message{raw: raw}
}

func (m *Message) load() error {
	m.once.Do(func() {
		m.parsed, m.parseErr = parseMessage(m.raw)
	})
	return m.parseErr
}

func (m *Message) Subject() (string, error) {
	if err := m.load(); err != nil {
		return "", err
	}
	return m.parsed.subject, nil
}

func (m *Message) Body() (string, error) {
	if err := m.load(); err != nil {
		return "", err
	}
	return m.parsed.text, nil
}

func (m *Message) BodyHTML() (string, error) {
	if err := m.load(); err != nil {
		return "", err
	}
	return m.parsed.html, nil
}

func (m *Message) DeliveryTime() (time.Time, error) {
	if err := m.load(); err != nil {
		return time.Time{}, err
	}
	return m.parsed.date, nil
}

// Properties maps the parsed MIME fields onto the property aliases the
// normalizer looks up, so mbox messages flow through the same alias lists as
// native container property bags.
func (m *Message) Properties() (mailbox.PropertySet, error) {
	if err := m.load(); err != nil {
		return nil, err
	}

	props := mailbox.PropertySet{"Message class": "IPM.Note"}
	put := func(key, value string) {
		if value != "" {
			props[key] = value
		}
	}
	put("Subject", m.parsed.subject)
	put("Sender name", m.parsed.from)
	put("Display to", m.parsed.to)
	put("Internet message identifier", m.parsed.messageID)
	put("Transport message headers", m.parsed.rawHeader)
	put("Body", m.parsed.text)
	return props, nil
}

func (m *Message) Recipients() ([]mailbox.PropertySet, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	return m.parsed.recipients, nil
}

func (m *Message) AttachmentCount() (int, error) {
	if err := m.load(); err != nil {
		return 0, err
	}
	return len(m.parsed.attachments), nil
}

func (m *Message) Attachment(index int) (mailbox.PropertySet, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(m.parsed.attachments) {
		return nil, fmt.Errorf("no attachment entry %d", index)
	}
	return m.parsed.attachments[index], nil
}

func parseMessage(raw []byte) (parsedMessage, error) {
	var p parsedMessage
	p.rawHeader = string(splitRawHeader(raw))

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return p, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	header := mr.Header
	p.subject, _ = header.Subject()
	p.date, _ = header.Date()
	p.messageID, _ = header.MessageID()

	if from, err := header.AddressList("From"); err == nil {
		p.from = formatAddresses(from)
	}
	if to, err := header.AddressList("To"); err == nil {
		p.to = formatAddresses(to)
		for _, addr := range to {
			p.recipients = append(p.recipients, mailbox.PropertySet{"Email address": addr.Address})
		}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Truncated or mangled MIME: keep whatever parts were readable.
			break
		}

		switch ph := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := ph.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case contentType == "text/plain" && p.text == "":
				p.text = string(body)
			case contentType == "text/html" && p.html == "":
				p.html = string(body)
			}
		case *gomail.AttachmentHeader:
			filename, _ := ph.Filename()
			data, err := io.ReadAll(part.Body)
			if err != nil || len(data) == 0 {
				continue
			}
			props := mailbox.PropertySet{"data": data}
			if filename != "" {
				props["filename"] = filename
			}
			p.attachments = append(p.attachments, props)
		}
	}

	return p, nil
}

func formatAddresses(addrs []*gomail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// splitRawHeader returns the raw header block of an RFC 5322 message.
func splitRawHeader(raw []byte) []byte {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
