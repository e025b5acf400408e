package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/model"
)

// Property alias lists, in lookup priority order. The same logical field may
// be stored under a numeric tag, a hex tag, or a human-readable name
// depending on how the container was written.
var (
	subjectKeys   = []string{"37", "0x37", "0037", "Subject"}
	fromKeys      = []string{"0c1a", "0C1A", "Sender name", "0042", "Sent representing name"}
	toKeys        = []string{"0e04", "Display to", "0c1f", "Sender e-mail address"}
	dateKeys      = []string{"0e06", "3007"}
	messageIDKeys = []string{"1035", "Internet message identifier"}
	headerKeys    = []string{"007d", "0078", "Transport message headers"}
	classKeys     = []string{"001a", "Message class"}

	// Wider alias lists used by the post-normalization enrichment pass.
	enrichFromKeys = []string{"0c1a", "0C1A", "0x0c1a", "Sender name", "Sender entry name"}
	enrichToKeys   = []string{"0e04", "0E04", "Display to", "0c1f", "0C1F"}
	enrichBodyKeys = []string{"1000", "0x1000", "Body", "Plain text message body"}
	recipientKeys  = []string{"3003", "0c1f", "Email address", "3001"}
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	headerLineRe = regexp.MustCompile(`^([A-Za-z\-]+):\s*(.*)$`)
)

// Normalize converts one raw message plus its property set into a Record.
// Every field degrades independently to the empty string on accessor failure;
// the only error returned is a failed body extraction, which skips the whole
// record.
func Normalize(msg mailbox.Message, props mailbox.PropertySet, containerName, folderPath string) (model.Record, error) {
	body, err := messageBody(msg)
	if err != nil {
		return model.Record{}, fmt.Errorf("read body: %w", err)
	}

	subject := ""
	if s, serr := msg.Subject(); serr == nil {
		subject = s
	}
	if subject == "" {
		subject = props.GetString(subjectKeys...)
	}

	headers := transportHeaders(props)

	source := containerName
	if folderPath != "" {
		source = containerName + "::" + folderPath
	}

	return model.Record{
		Source:       source,
		MessageClass: props.GetString(classKeys...),
		From:         firstNonEmpty(headers["from"], props.GetString(fromKeys...)),
		To:           firstNonEmpty(headers["to"], props.GetString(toKeys...)),
		Cc:           headers["cc"],
		Subject:      subject,
		Date:         messageDate(msg, props),
		MessageID:    props.GetString(messageIDKeys...),
		Body:         body,
	}, nil
}

// messageBody prefers the plain-text body and falls back to stripped HTML. A
// failing plain-text accessor is the one record-fatal condition; a failing
// HTML fallback merely leaves the body empty for the enrichment pass.
func messageBody(msg mailbox.Message) (string, error) {
	body, err := msg.Body()
	if err != nil {
		return "", err
	}
	if body != "" {
		return body, nil
	}

	html, err := msg.BodyHTML()
	if err != nil || html == "" {
		return "", nil
	}
	return StripHTML(html), nil
}

func messageDate(msg mailbox.Message, props mailbox.PropertySet) string {
	if t, err := msg.DeliveryTime(); err == nil && !t.IsZero() {
		return t.UTC().Format(time.RFC3339)
	}
	return props.GetString(dateKeys...)
}

// transportHeaders parses the RFC 822 transport header blob stored in the
// property set into a lowercase-keyed map. Repeated headers are joined with
// commas; folded continuation lines are ignored.
func transportHeaders(props mailbox.PropertySet) map[string]string {
	blob := props.GetString(headerKeys...)
	out := make(map[string]string)
	if blob == "" {
		return out
	}

	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := headerLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(m[1])
		val := strings.TrimSpace(m[2])
		if prev, ok := out[key]; ok {
			out[key] = prev + "," + val
		} else {
			out[key] = val
		}
	}
	return out
}

// StripHTML converts HTML to plain text and collapses runs of whitespace into
// single spaces.
func StripHTML(s string) string {
	text, err := html2text.FromString(s, html2text.Options{TextOnly: true})
	if err != nil {
		text = htmlTagRe.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
