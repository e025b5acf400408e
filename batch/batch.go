// Package batch groups normalized records into token-bounded JSONL output
// units and routes chat turns and attachments into the output layout.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/vicluzy/pst-extract/chat"
	"github.com/vicluzy/pst-extract/model"
	"github.com/vicluzy/pst-extract/sink"
	"github.com/vicluzy/pst-extract/state"
	"github.com/vicluzy/pst-extract/stats"
)

// DefaultMaxTokens is the per-batch token budget.
const DefaultMaxTokens = 2500

// Tokens estimates the token cost of a serialized record as one token per
// four bytes, with a floor of one. This is a batching heuristic, not a real
// tokenizer.
func Tokens(b []byte) int {
	n := len(b) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Packager writes a container's records, chat turns and attachments through
// a Sink. The path registry is shared across containers so output paths stay
// pairwise distinct for the whole run.
type Packager struct {
	sink      sink.Sink
	maxTokens int
	registry  *state.PathRegistry
	emit      func(stats.Event)
}

func New(s sink.Sink, maxTokens int, registry *state.PathRegistry, emit func(stats.Event)) *Packager {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Packager{
		sink:      s,
		maxTokens: maxTokens,
		registry:  registry,
		emit:      emit,
	}
}

// Package emits one container's output rooted at basePath and returns its
// stats. Record order is preserved: concatenating the emitted batches
// reproduces the input sequence exactly.
func (p *Packager) Package(basePath string, records []model.Record, attachments []model.Attachment) (stats.FileSummary, error) {
	summary := stats.FileSummary{Name: basePath}

	if err := p.writeBatches(basePath, records); err != nil {
		return summary, err
	}
	summary.Emails = len(records)

	turns, err := p.writeChatTurns(basePath, records)
	if err != nil {
		return summary, err
	}
	summary.TeamsMessages = turns

	if err := p.writeAttachments(basePath, attachments); err != nil {
		return summary, err
	}
	summary.Attachments = len(attachments)

	return summary, nil
}

// writeBatches packs records greedily in input order. A record whose cost
// alone exceeds the budget becomes its own single-record unit and is never
// merged with siblings.
func (p *Packager) writeBatches(basePath string, records []model.Record) error {
	var (
		fileIdx    int
		current    [][]byte
		currTokens int
	)

	flush := func(lines [][]byte) error {
		path := fmt.Sprintf("%s/emails_jsonl/mail_%04d.jsonl", basePath, fileIdx)
		fileIdx++

		var buf []byte
		for i, line := range lines {
			if i > 0 {
				buf = append(buf, '\n')
			}
			buf = append(buf, line...)
		}
		buf = append(buf, '\n')

		p.notify(stats.Event{Type: stats.EventTypeBatch, Detail: path})
		return p.sink.WriteText(path, string(buf))
	}

	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		t := Tokens(line)

		if t > p.maxTokens {
			if len(current) > 0 {
				if err := flush(current); err != nil {
					return err
				}
				current, currTokens = nil, 0
			}
			if err := flush([][]byte{line}); err != nil {
				return err
			}
			continue
		}

		if currTokens+t > p.maxTokens && len(current) > 0 {
			if err := flush(current); err != nil {
				return err
			}
			current, currTokens = nil, 0
		}

		current = append(current, line)
		currTokens += t
	}

	if len(current) > 0 {
		if err := flush(current); err != nil {
			return err
		}
	}
	return nil
}

// writeChatTurns makes a second pass over all records, deriving turns for
// every transcript record. The resulting sequence is written as one output
// unit, omitted entirely when empty.
func (p *Packager) writeChatTurns(basePath string, records []model.Record) (int, error) {
	var turns []model.ChatTurn
	for _, rec := range records {
		if !chat.IsTranscript(rec) {
			continue
		}
		turns = append(turns, chat.Turns(rec)...)
	}
	if len(turns) == 0 {
		return 0, nil
	}

	var buf []byte
	for i, t := range turns {
		line, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("encode chat turn: %w", err)
		}
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, line...)
		p.notify(stats.Event{Type: stats.EventTypeChatTurn})
	}
	buf = append(buf, '\n')

	path := basePath + "/teams_messages/teams_messages.jsonl"
	if err := p.sink.WriteText(path, string(buf)); err != nil {
		return 0, err
	}
	return len(turns), nil
}

func (p *Packager) writeAttachments(basePath string, attachments []model.Attachment) error {
	for _, a := range attachments {
		path := p.registry.Resolve(basePath + "/attachments/" + a.Folder + "/" + a.Name)
		if err := p.sink.WriteBytes(path, a.Data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packager) notify(evt stats.Event) {
	if p.emit != nil {
		p.emit(evt)
	}
}
