package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type EventType string

const (
	EventTypeRecord        EventType = "record"
	EventTypeAttachment    EventType = "attachment"
	EventTypeChatTurn      EventType = "chat_turn"
	EventTypeBatch         EventType = "batch"
	EventTypeFiltered      EventType = "filtered"
	EventTypeWarning       EventType = "warning"
	EventTypeContainerDone EventType = "container_done"
	EventTypeContainerFail EventType = "container_fail"
)

type Event struct {
	Type      EventType
	Container string
	Detail    string
	Err       error
}

type Summary struct {
	Records     int
	Attachments int
	ChatTurns   int
	Batches     int
	Filtered    int
	Warnings    int
	Containers  int
	Failed      int
	LastError   error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"records", s.Records,
		"attachments", s.Attachments,
		"chatTurns", s.ChatTurns,
		"batches", s.Batches,
		"filtered", s.Filtered,
		"warnings", s.Warnings,
		"containers", s.Containers,
		"failed", s.Failed,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeRecord:
		c.summary.Records++
	case EventTypeAttachment:
		c.summary.Attachments++
	case EventTypeChatTurn:
		c.summary.ChatTurns++
	case EventTypeBatch:
		c.summary.Batches++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeWarning:
		c.summary.Warnings++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeContainerDone:
		c.summary.Containers++
	case EventTypeContainerFail:
		c.summary.Failed++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// FileSummary is the per-container entry of the run summary.
type FileSummary struct {
	Name          string `json:"name"`
	Emails        int    `json:"emails"`
	Attachments   int    `json:"attachments"`
	TeamsMessages int    `json:"teams_messages"`
}

// FailedFile describes one container whose extraction failed entirely.
type FailedFile struct {
	Name    string `json:"name"`
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

// RunSummary aggregates a multi-container run. It is appended to only
// between container runs, never concurrently.
type RunSummary struct {
	PstFiles         []FileSummary `json:"pst_files"`
	FailedFiles      []FailedFile  `json:"failed_files"`
	TotalEmails      int           `json:"total_emails"`
	TotalAttachments int           `json:"total_attachments"`
	TotalTeams       int           `json:"total_teams"`
}

func (s *RunSummary) AddFile(fs FileSummary) {
	s.PstFiles = append(s.PstFiles, fs)
	s.TotalEmails += fs.Emails
	s.TotalAttachments += fs.Attachments
	s.TotalTeams += fs.TeamsMessages
}

func (s *RunSummary) AddFailure(name string, err error) {
	s.FailedFiles = append(s.FailedFiles, FailedFile{
		Name:    name,
		Reason:  err.Error(),
		Details: FormatDetails(err),
	})
}

// FormatDetails renders an error together with its unwrap chain, one cause
// per line, for the failed_files diagnostics.
func FormatDetails(err error) string {
	if err == nil {
		return ""
	}
	details := err.Error()
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		details += "\ncause: " + cause.Error()
	}
	return details
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Value > pairs[j].Value
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
