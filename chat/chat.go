// Package chat detects embedded Teams/Skype transcripts in normalized records
// and segments them into individual timestamped turns.
package chat

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/vicluzy/pst-extract/model"
)

const (
	maxTurnText     = 5000
	maxUnparsedText = 10000
	maxSenderName   = 40
)

// headerRe matches one "<sender> [H:MM AM/PM]: " chat header. The brackets
// around the time are optional and matching is case-insensitive.
var headerRe = regexp.MustCompile(`(?i)(.+?)\s+\[?(\d{1,2}:\d{2}\s*(?:AM|PM))\]?:\s*`)

var (
	classRe  = regexp.MustCompile(`(?i)conversation|teams|skype`)
	sourceRe = regexp.MustCompile(`(?i)conversation[- ]history`)
	entityRe = regexp.MustCompile(`&#(\d+);`)
)

// indicators are phrases whose presence in body+subject+to marks a record as
// a chat transcript. All comparisons are lowercase substring matches.
var indicators = []string{
	"teams.microsoft.com",
	"skype for business",
	"conversation with",
	"duration:",
	" minutes ",
	" anonymous.invalid",
	"thread.skype",
}

// IsTranscript reports whether a record looks like an embedded chat
// transcript rather than a regular mail message.
func IsTranscript(rec model.Record) bool {
	if classRe.MatchString(rec.MessageClass) {
		return true
	}
	if sourceRe.MatchString(rec.Source) {
		return true
	}
	combined := strings.ToLower(rec.Body + " " + rec.Subject + " " + rec.To)
	for _, ind := range indicators {
		if strings.Contains(combined, ind) {
			return true
		}
	}
	return false
}

// Turns segments a transcript record into chat turns. When no well-formed
// header can be found in a non-empty body, a single unparsed turn carrying
// the truncated raw body is emitted instead.
func Turns(rec model.Record) []model.ChatTurn {
	parsed := parseTurns(rec.Body)

	if len(parsed) == 0 {
		if strings.TrimSpace(rec.Body) == "" {
			return nil
		}
		text := rec.Body
		if len(text) > maxUnparsedText {
			text = text[:maxUnparsedText]
		}
		return []model.ChatTurn{{
			SourceFile:     rec.Source,
			ConversationID: ConversationID(rec),
			Subject:        rec.Subject,
			OutlookDate:    rec.Date,
			Platform:       Platform(rec),
			Text:           text,
			IsParsed:       false,
		}}
	}

	out := make([]model.ChatTurn, 0, len(parsed))
	for _, t := range parsed {
		out = append(out, model.ChatTurn{
			SourceFile:     rec.Source,
			ConversationID: ConversationID(rec),
			Subject:        rec.Subject,
			OutlookDate:    rec.Date,
			Platform:       Platform(rec),
			Sender:         t.sender,
			SenderEmail:    t.senderEmail,
			MessageTime:    t.time,
			Text:           t.text,
			IsParsed:       true,
		})
	}
	return out
}

type turn struct {
	sender      string
	senderEmail string
	time        string
	text        string
}

// parseTurns collects all header-match spans first, then derives each turn's
// text from consecutive span pairs, so no reliance on a pattern engine's
// mutable global-match cursor is needed.
func parseTurns(body string) []turn {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	text := normalizeEntities(body)

	matches := headerRe.FindAllStringSubmatchIndex(text, -1)
	var out []turn
	for i, m := range matches {
		sender := strings.TrimSpace(text[m[2]:m[3]])
		timeStr := strings.TrimSpace(text[m[4]:m[5]])

		start := m[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		msgText := strings.TrimSpace(text[start:end])

		// A sender line often repeats just before the next header; drop the
		// duplicate from this turn's tail.
		if i+1 < len(matches) {
			next := matches[i+1]
			nextSender := strings.TrimSpace(text[next[2]:next[3]])
			if nextSender != "" && strings.HasSuffix(msgText, nextSender) {
				msgText = strings.TrimSpace(msgText[:len(msgText)-len(nextSender)])
			}
		}

		if msgText == "" {
			continue
		}
		head := msgText
		if len(head) > 50 {
			head = head[:50]
		}
		if strings.Contains(head, "Duration:") {
			continue
		}

		isEmail := isEmailAddress(sender)
		if !isEmail && (sender == "" || len(sender) > maxSenderName || !startsUpper(sender)) {
			continue
		}

		if len(msgText) > maxTurnText {
			msgText = msgText[:maxTurnText]
		}

		t := turn{time: timeStr, text: msgText}
		if isEmail {
			t.senderEmail = sender
		} else {
			t.sender = sender
		}
		out = append(out, t)
	}
	return out
}

// normalizeEntities resolves &nbsp;, numeric character references and tabs so
// the header pattern can match HTML-mangled transcripts.
func normalizeEntities(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return entityRe.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || n < 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})
}

func isEmailAddress(s string) bool {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

// ConversationID derives a stable id from subject|from|to|date using a 32-bit
// multiply-by-31 rolling hash over UTF-16 code units, rendered as an unsigned
// decimal. Identical inputs always produce the same id; collisions are
// acceptable since ids only group turns within a run.
func ConversationID(rec model.Record) string {
	raw := rec.Subject + "|" + rec.From + "|" + rec.To + "|" + rec.Date

	var h int32
	for _, u := range utf16.Encode([]rune(raw)) {
		h = (h << 5) - h + int32(u)
	}
	return strconv.FormatUint(uint64(uint32(h)), 10)
}

// Platform guesses which chat product produced the transcript.
func Platform(rec model.Record) string {
	body := strings.ToLower(rec.Body)
	switch {
	case strings.Contains(body, "teams.microsoft.com") || strings.Contains(body, "thread.skype"):
		return "teams"
	case strings.Contains(body, "skype for business"):
		return "skype"
	default:
		return "teams_or_skype"
	}
}
