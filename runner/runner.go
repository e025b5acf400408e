package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vicluzy/pst-extract/batch"
	"github.com/vicluzy/pst-extract/config"
	"github.com/vicluzy/pst-extract/extract"
	"github.com/vicluzy/pst-extract/filter"
	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/model"
	"github.com/vicluzy/pst-extract/sink"
	"github.com/vicluzy/pst-extract/state"
	"github.com/vicluzy/pst-extract/stats"
)

// Source names a container and knows how to open it. Opening is deferred so
// a container that fails to open is reported like any other failed file.
type Source struct {
	Name string
	Open func() (mailbox.Container, error)
}

// FileSource builds a source from a container file path.
func FileSource(path string) Source {
	base := filepath.Base(path)
	return Source{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Open: func() (mailbox.Container, error) {
			return mailbox.Open(path)
		},
	}
}

// Runner processes containers strictly sequentially. The only concurrency is
// the stats subscriber goroutines consuming the event channel; extraction
// itself is single-threaded so failure isolation stays at message and folder
// granularity.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger
	flt    *filter.Filter

	ctx    context.Context
	cancel context.CancelFunc

	events          chan stats.Event
	statsWG         sync.WaitGroup
	closeEventsOnce sync.Once

	since time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	flt, err := filter.New(filter.Options{
		IncludeSubject: cfg.IncludeSubject,
		IncludeBody:    cfg.IncludeBody,
		ExcludeSubject: cfg.ExcludeSubject,
		ExcludeBody:    cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("record filter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:    cfg,
		logger: logger,
		flt:    flt,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan stats.Event, 128),
	}, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && r.logger != nil {
			r.logger.Warn("stats subscriber stopped", "name", name, "err", err)
		}
	}()
}

// Run extracts every source into the sink and returns the run summary. Failed
// containers are recorded in the summary and do not stop the run; only a run
// where every container fails returns an error, with all per-container
// details concatenated.
func (r *Runner) Run(sources []Source, snk sink.Sink) (stats.RunSummary, error) {
	r.since = time.Now()
	defer r.finish()

	registry := state.NewPathRegistry()
	packager := batch.New(snk, r.cfg.MaxTokens, registry, r.EmitEvent)

	var summary stats.RunSummary
	for _, src := range sources {
		fs, err := r.runContainer(src, packager)
		if err != nil {
			r.logger.Error("container extraction failed", "container", src.Name, "err", err)
			summary.AddFailure(src.Name, err)
			r.EmitEvent(stats.Event{Type: stats.EventTypeContainerFail, Container: src.Name, Err: err})
			continue
		}
		summary.AddFile(fs)
		r.EmitEvent(stats.Event{Type: stats.EventTypeContainerDone, Container: src.Name})
		r.logger.Info("container extracted", "container", src.Name,
			"emails", fs.Emails, "attachments", fs.Attachments, "teamsMessages", fs.TeamsMessages)
	}

	if len(sources) > 0 && len(summary.PstFiles) == 0 {
		details := make([]string, 0, len(summary.FailedFiles))
		for i, f := range summary.FailedFiles {
			details = append(details, fmt.Sprintf("%d. %s: %s", i+1, f.Name, f.Details))
		}
		return summary, fmt.Errorf("all containers failed to extract:\n%s", strings.Join(details, "\n\n"))
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("encode run summary: %w", err)
	}
	if err := snk.WriteText("summary.json", string(data)+"\n"); err != nil {
		return summary, fmt.Errorf("write run summary: %w", err)
	}

	return summary, nil
}

func (r *Runner) runContainer(src Source, packager *batch.Packager) (stats.FileSummary, error) {
	c, err := src.Open()
	if err != nil {
		return stats.FileSummary{}, fmt.Errorf("open container: %w", err)
	}
	defer c.Close()

	result, err := extract.Run(c, r.logger, r.EmitEvent)
	if err != nil {
		return stats.FileSummary{}, err
	}

	records := r.applyFilter(src.Name, result.Records)

	return packager.Package(c.Name(), records, result.Attachments)
}

func (r *Runner) applyFilter(container string, records []model.Record) []model.Record {
	if !r.flt.Active() {
		return records
	}

	kept := records[:0:0]
	for _, rec := range records {
		if r.flt.Allows(rec) {
			kept = append(kept, rec)
			continue
		}
		r.EmitEvent(stats.Event{Type: stats.EventTypeFiltered, Container: container, Detail: rec.MessageID})
	}
	return kept
}

func (r *Runner) finish() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
	r.statsWG.Wait()
	r.cancel()
	r.logger.Info("run finished", "duration", time.Since(r.since))
}
