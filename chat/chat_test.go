package chat

import (
	"strings"
	"testing"

	"github.com/vicluzy/pst-extract/model"
)

func TestIsTranscript(t *testing.T) {
	tests := []struct {
		name string
		rec  model.Record
		want bool
	}{
		{"plain mail", model.Record{MessageClass: "IPM.Note", Subject: "Q2 report", Body: "see attached"}, false},
		{"conversation class", model.Record{MessageClass: "IPM.Note.Microsoft.Conversation"}, true},
		{"teams class", model.Record{MessageClass: "IPM.SkypeTeams.Message"}, true},
		{"class match is case-insensitive", model.Record{MessageClass: "ipm.note.microsoft.CONVERSATION"}, true},
		{"conversation history folder", model.Record{Source: "mail.pst::Root/Conversation History"}, true},
		{"conversation-history hyphenated", model.Record{Source: "mail.pst::Root/conversation-history"}, true},
		{"teams link in body", model.Record{Body: "join at https://teams.microsoft.com/l/meetup"}, true},
		{"skype for business in body", model.Record{Body: "Sent via Skype for Business"}, true},
		{"conversation with subject", model.Record{Subject: "Conversation with Bob"}, true},
		{"duration marker", model.Record{Body: "Call ended. Duration: 25 minutes."}, true},
		{"anonymous.invalid recipient", model.Record{To: "orgid:abc@anonymous.invalid"}, true},
		{"thread.skype in to", model.Record{To: "19:meeting@thread.skype"}, true},
		{"minutes needs surrounding spaces", model.Record{Body: "runtime was 90 minutes"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTranscript(tt.rec); got != tt.want {
				t.Errorf("IsTranscript() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTurns_ParsesHeaderedBody(t *testing.T) {
	rec := model.Record{
		Source:  "mail.pst::Root/Conversation History",
		Subject: "Conversation with Bob",
		From:    "alice@example.com",
		To:      "bob@example.com",
		Date:    "2024-05-01T10:00:00Z",
		Body:    "Alice [3:15 PM]: hello\nBob [3:16 PM]: hi there",
	}

	turns := Turns(rec)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}

	first := turns[0]
	if first.Sender != "Alice" || first.MessageTime != "3:15 PM" || first.Text != "hello" {
		t.Errorf("first turn = %+v", first)
	}
	second := turns[1]
	if second.Sender != "Bob" || second.MessageTime != "3:16 PM" || second.Text != "hi there" {
		t.Errorf("second turn = %+v", second)
	}

	for _, tr := range turns {
		if !tr.IsParsed {
			t.Errorf("IsParsed = false, want true")
		}
		if tr.SourceFile != rec.Source || tr.Subject != rec.Subject || tr.OutlookDate != rec.Date {
			t.Errorf("record fields not carried: %+v", tr)
		}
		if tr.ConversationID != turns[0].ConversationID {
			t.Errorf("conversation ids differ within one record")
		}
	}
}

func TestTurns_BracketsOptional(t *testing.T) {
	rec := model.Record{Body: "Alice 3:15 PM: no brackets here"}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Sender != "Alice" || turns[0].Text != "no brackets here" {
		t.Errorf("turn = %+v", turns[0])
	}
}

func TestTurns_TrailingSenderLineTrimmed(t *testing.T) {
	rec := model.Record{Body: "Alice [3:15 PM]: hello\nBob\nBob [3:16 PM]: hi"}

	turns := Turns(rec)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Text != "hello" {
		t.Errorf("first text = %q, want duplicate sender line removed", turns[0].Text)
	}
}

func TestTurns_EmailSender(t *testing.T) {
	rec := model.Record{Body: "bob.smith@example.com [9:05 AM]: morning"}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].SenderEmail != "bob.smith@example.com" {
		t.Errorf("SenderEmail = %q", turns[0].SenderEmail)
	}
	if turns[0].Sender != "" {
		t.Errorf("Sender = %q, want empty for email senders", turns[0].Sender)
	}
}

func TestTurns_RejectsImplausibleSenders(t *testing.T) {
	longName := strings.Repeat("A", 41)
	rec := model.Record{Body: "Alice [3:15 PM]: kept\n" +
		"bob [3:16 PM]: lowercase dropped\n" +
		longName + " [3:17 PM]: name too long\n" +
		"Carol [3:18 PM]: also kept"}

	turns := Turns(rec)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2: %+v", len(turns), turns)
	}
	if turns[0].Sender != "Alice" || turns[1].Sender != "Carol" {
		t.Errorf("senders = %q, %q", turns[0].Sender, turns[1].Sender)
	}
}

func TestTurns_DiscardsDurationSystemLines(t *testing.T) {
	rec := model.Record{Body: "Alice [3:15 PM]: real message\nSystem [3:20 PM]: Duration: 25 minutes"}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Text != "real message" {
		t.Errorf("text = %q", turns[0].Text)
	}
}

func TestTurns_HTMLEntitiesNormalized(t *testing.T) {
	rec := model.Record{Body: "Alice&nbsp;[3:15&#32;PM]:&#32;hi&nbsp;there"}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Sender != "Alice" || turns[0].Text != "hi there" {
		t.Errorf("turn = %+v", turns[0])
	}
}

func TestTurns_UnparsedFallback(t *testing.T) {
	rec := model.Record{
		Source:       "mail.pst::Root/Conversation History",
		MessageClass: "IPM.Note.Microsoft.Conversation",
		Subject:      "Conversation with Bob",
		Date:         "2024-05-01T10:00:00Z",
		Body:         "A transcript export without any recognizable headers.",
	}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	tr := turns[0]
	if tr.IsParsed {
		t.Error("IsParsed = true, want false")
	}
	if tr.Text != rec.Body {
		t.Errorf("Text = %q, want raw body", tr.Text)
	}
	if tr.Sender != "" || tr.MessageTime != "" {
		t.Errorf("unparsed turn carries sender/time: %+v", tr)
	}
}

func TestTurns_UnparsedFallbackCapped(t *testing.T) {
	rec := model.Record{Body: strings.Repeat("x", 12000)}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if len(turns[0].Text) != 10000 {
		t.Errorf("text length = %d, want 10000", len(turns[0].Text))
	}
}

func TestTurns_ParsedTextCapped(t *testing.T) {
	rec := model.Record{Body: "Alice [3:15 PM]: " + strings.Repeat("y", 6000)}

	turns := Turns(rec)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if len(turns[0].Text) != 5000 {
		t.Errorf("text length = %d, want 5000", len(turns[0].Text))
	}
}

func TestTurns_EmptyBody(t *testing.T) {
	if got := Turns(model.Record{Body: "   \n "}); got != nil {
		t.Errorf("Turns() = %v, want nil for blank body", got)
	}
}

func TestConversationID(t *testing.T) {
	tests := []struct {
		name string
		rec  model.Record
		want string
	}{
		{
			"simple fields",
			model.Record{Subject: "a", From: "b", To: "c", Date: "d"},
			"3832824086",
		},
		{
			"realistic fields",
			model.Record{Subject: "Weekly sync", From: "alice@example.com", To: "bob@example.com", Date: "2024-05-01T10:00:00Z"},
			"2492261934",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConversationID(tt.rec); got != tt.want {
				t.Errorf("ConversationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversationID_Stable(t *testing.T) {
	rec := model.Record{Subject: "s", From: "f", To: "t", Date: "2024-01-01"}
	if ConversationID(rec) != ConversationID(rec) {
		t.Error("same record produced different ids")
	}
	other := rec
	other.Subject = "s2"
	if ConversationID(rec) == ConversationID(other) {
		t.Error("different subjects produced the same id")
	}
}

func TestPlatform(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"teams link", "join https://teams.microsoft.com/l/x", "teams"},
		{"skype thread id", "to 19:abc@thread.skype", "teams"},
		{"skype for business", "via Skype For Business", "skype"},
		{"no marker", "Alice [3:15 PM]: hello", "teams_or_skype"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Platform(model.Record{Body: tt.body}); got != tt.want {
				t.Errorf("Platform() = %q, want %q", got, tt.want)
			}
		})
	}
}
