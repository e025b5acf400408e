package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/vicluzy/pst-extract/stats"
)

// Bar manages a progress bar tracking container extraction.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	records int
	mu      sync.Mutex
	enabled bool
}

// New creates a new progress bar if logLevel is "info".
func New(total int, logLevel string) *Bar {
	enabled := logLevel == "info"

	bar := &Bar{
		total:   total,
		enabled: enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Extracting containers").
			Start()
		bar.pb = pb
	}

	return bar
}

// Update advances the bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeRecord:
		b.records++
		if evt.Container != "" {
			b.pb.UpdateTitle("Extracting: " + evt.Container)
		}
	case stats.EventTypeContainerDone:
		b.pb.Increment()
	case stats.EventTypeContainerFail:
		b.pb.Increment()
		if evt.Err != nil {
			pterm.Error.Printf("Failed %s: %v\n", evt.Container, evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
}

// Subscriber creates a stats subscriber function that updates the bar.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// Reporter wraps the stats collector with progress bar output.
type Reporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewReporter subscribes both the progress bar and a stats collector to the
// event stream. When the bar is disabled only the collector runs.
func NewReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress-bar", bar.Subscriber)
	}
	stream.SubscribeStats("progress-stats", reporter.collectStats)

	return reporter
}

func (r *Reporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	r.collector.Run(ctx, events)

	summary := r.collector.Snapshot()
	duration := time.Since(r.started)

	if r.bar != nil && r.bar.enabled {
		pterm.Println()
		pterm.DefaultSection.Println("Extraction Summary")
		pterm.Info.Printf("Duration: %v\n", duration)
		pterm.Info.Printf("Containers: %d (failed: %d)\n", summary.Containers, summary.Failed)
		pterm.Info.Printf("Emails: %d\n", summary.Records)
		pterm.Info.Printf("Attachments: %d\n", summary.Attachments)
		pterm.Info.Printf("Teams messages: %d\n", summary.ChatTurns)
		pterm.Info.Printf("Batches written: %d\n", summary.Batches)
		if summary.Filtered > 0 {
			pterm.Info.Printf("Filtered out: %d\n", summary.Filtered)
		}
		if summary.Warnings > 0 {
			pterm.Warning.Printf("Warnings: %d\n", summary.Warnings)
		}
		if summary.LastError != nil {
			pterm.Error.Printf("Last error: %v\n", summary.LastError)
		}
	} else if r.logger != nil && ctx.Err() == nil {
		r.logger.Info("run summary", append(summary.LogAttrs(), "duration", duration)...)
	}

	return ctx.Err()
}

// Summary returns the collected counters.
func (r *Reporter) Summary() stats.Summary {
	return r.collector.Snapshot()
}
