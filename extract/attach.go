package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/model"
)

var (
	payloadKeys  = []string{"3701", "0x3701", "Attachment binary data", "Attachment object", "data"}
	filenameKeys = []string{"3704", "3707", "0x3704", "Attachment (short) filename", "Attachment long filename", "filename", "3001", "Display name"}
)

var (
	namedExtRe     = regexp.MustCompile(`(?i)\.[a-z0-9]{2,6}$`)
	unsafeCharRe   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDotsRe = regexp.MustCompile(`\.+$`)
)

// ExtractAttachments pulls every retrievable attachment payload out of a
// message. It never fails as a whole: per-index errors are reported through
// warn and that attachment is skipped; entries without a non-empty payload
// are skipped silently.
func ExtractAttachments(msg mailbox.Message, folderName string, warn func(context string, err error)) []model.Attachment {
	count, err := msg.AttachmentCount()
	if err != nil {
		warn("unable to read attachment entries", err)
		return nil
	}

	var out []model.Attachment
	for i := 0; i < count; i++ {
		props, err := msg.Attachment(i)
		if err != nil {
			warn(fmt.Sprintf("skipping attachment index=%d", i), err)
			continue
		}
		if props == nil {
			continue
		}

		data := payloadBytes(props.Get(payloadKeys...))
		if len(data) == 0 {
			continue
		}

		base := fmt.Sprintf("attachment_%d", i)
		if v := props.Get(filenameKeys...); v != nil {
			if s, ok := v.(string); ok {
				base = s
			} else {
				base = "attachment"
			}
		}

		name := SanitizeFilename(base)
		if !namedExtRe.MatchString(name) {
			name += SniffExtension(data)
		}

		out = append(out, model.Attachment{
			Folder: folderName,
			Name:   name,
			Data:   data,
		})
	}
	return out
}

func payloadBytes(v any) []byte {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return nil
	}
}

// SniffExtension infers a file extension from the payload's magic bytes.
// Payloads shorter than 4 bytes or with an unknown signature get ".bin".
func SniffExtension(data []byte) string {
	if len(data) < 4 {
		return ".bin"
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return ".pdf"
	case data[0] == 0xff && data[1] == 0xd8:
		return ".jpg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return ".png"
	}
	return ".bin"
}

// SanitizeFilename makes a name safe for the output layout: filesystem-illegal
// and control characters become underscores, trailing dots are stripped and
// the result is capped at 200 bytes. Names that end up empty become
// "unnamed".
func SanitizeFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return "unnamed"
	}

	s := unsafeCharRe.ReplaceAllString(name, "_")
	s = strings.TrimSpace(s)
	s = trailingDotsRe.ReplaceAllString(s, "")
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "unnamed"
	}
	return s
}
