package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/model"
	"github.com/vicluzy/pst-extract/stats"
)

var folderNameRe = regexp.MustCompile(`[^\w\-.]`)

// Result holds everything recovered from one container.
type Result struct {
	Records     []model.Record
	Attachments []model.Attachment
	Warnings    []model.Warning
}

// Walker traverses a container's folder tree depth-first, accumulating
// records, attachments and warnings. Failures are isolated per node: a bad
// subfolder, message or attachment is warned about and skipped while its
// siblings keep processing.
type Walker struct {
	containerName string
	logger        *slog.Logger
	emit          func(stats.Event)

	Records     []model.Record
	Attachments []model.Attachment
	Warnings    []model.Warning
}

func NewWalker(containerName string, logger *slog.Logger, emit func(stats.Event)) *Walker {
	return &Walker{
		containerName: containerName,
		logger:        logger,
		emit:          emit,
	}
}

// Run extracts a whole container. A missing root folder is container-fatal,
// as is recovering zero messages while warnings were recorded: that signals
// an unreadable store rather than a merely sparse one, and the first warning
// is reported as the cause.
func Run(c mailbox.Container, logger *slog.Logger, emit func(stats.Event)) (Result, error) {
	root, err := c.Root()
	if err != nil {
		return Result{}, fmt.Errorf("open root folder: %w", err)
	}

	w := NewWalker(c.Name(), logger, emit)
	w.Walk(root, "")

	result := Result{
		Records:     w.Records,
		Attachments: w.Attachments,
		Warnings:    w.Warnings,
	}
	if len(w.Records) == 0 && len(w.Warnings) > 0 {
		return result, fmt.Errorf("unable to parse container entries (%s)", w.Warnings[0])
	}
	return result, nil
}

// Walk processes one folder and recurses into its subfolders. pathPrefix is
// the accumulated slash-joined display path of the parent, empty for the
// root call.
func (w *Walker) Walk(folder mailbox.Folder, pathPrefix string) {
	display := folder.DisplayName()
	if display == "" {
		display = "Folder"
	}
	fullPath := display
	if pathPrefix != "" {
		fullPath = pathPrefix + "/" + display
	}
	baseName := sanitizeFolderName(display)

	subs, err := folder.SubFolderEntries()
	if err != nil {
		w.warn(fmt.Sprintf("skipping subfolders for %s", fullPath), err)
		subs = nil
	}
	for _, id := range subs {
		sub, err := folder.SubFolder(id)
		if err != nil {
			w.warn(fmt.Sprintf("skipping subfolder id=%d in %s", id, fullPath), err)
			continue
		}
		if sub == nil {
			continue
		}
		w.Walk(sub, fullPath)
	}

	entries, err := folder.MessageEntries()
	if err != nil {
		w.warn(fmt.Sprintf("skipping contents for %s", fullPath), err)
		entries = nil
	}
	for _, id := range entries {
		w.processMessage(folder, id, fullPath, baseName)
	}
}

func (w *Walker) processMessage(folder mailbox.Folder, id mailbox.EntryID, fullPath, folderBase string) {
	msg, err := folder.Message(id)
	if err != nil {
		w.warn(fmt.Sprintf("skipping message id=%d in %s", id, fullPath), err)
		return
	}
	if msg == nil {
		return
	}

	props, err := msg.Properties()
	if err != nil {
		w.warn(fmt.Sprintf("unable to read properties for id=%d in %s", id, fullPath), err)
		props = mailbox.PropertySet{}
	}

	rec, err := Normalize(msg, props, w.containerName, fullPath)
	if err != nil {
		w.warn(fmt.Sprintf("skipping message record id=%d in %s", id, fullPath), err)
		return
	}

	w.enrich(&rec, msg, props, id, fullPath)

	w.Records = append(w.Records, rec)
	w.notify(stats.Event{Type: stats.EventTypeRecord, Container: w.containerName, Detail: rec.MessageID})

	atts := ExtractAttachments(msg, folderBase, func(context string, err error) {
		w.warn(fmt.Sprintf("%s for id=%d in %s", context, id, fullPath), err)
	})
	for _, a := range atts {
		w.Attachments = append(w.Attachments, a)
		w.notify(stats.Event{Type: stats.EventTypeAttachment, Container: w.containerName, Detail: a.Name})
	}
}

// enrich fills fields still empty after normalization from the wider property
// alias lists and the recipient table. Each step is independently fallible so
// one failing enrichment never drops the record.
func (w *Walker) enrich(rec *model.Record, msg mailbox.Message, props mailbox.PropertySet, id mailbox.EntryID, fullPath string) {
	if rec.From == "" {
		rec.From = props.GetString(enrichFromKeys...)
	}

	if rec.To == "" {
		var recipients []mailbox.PropertySet
		rs, err := msg.Recipients()
		if err != nil {
			w.warn(fmt.Sprintf("unable to read recipients for id=%d in %s", id, fullPath), err)
		} else {
			recipients = rs
		}
		rec.To = props.GetString(enrichToKeys...)
		if rec.To == "" && len(recipients) > 0 {
			addrs := make([]string, 0, len(recipients))
			for _, r := range recipients {
				addrs = append(addrs, r.GetString(recipientKeys...))
			}
			rec.To = strings.Join(addrs, "; ")
		}
	}

	if rec.Subject == "" {
		rec.Subject = props.GetString(subjectKeys...)
	}

	if rec.Body == "" {
		html := ""
		if h, err := msg.BodyHTML(); err != nil {
			w.warn(fmt.Sprintf("unable to read bodyHTML for id=%d in %s", id, fullPath), err)
		} else if h != "" {
			html = StripHTML(h)
		}
		rec.Body = props.GetString(enrichBodyKeys...)
		if rec.Body == "" {
			rec.Body = html
		}
	}
}

func (w *Walker) warn(context string, err error) {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	w.Warnings = append(w.Warnings, model.Warning{Context: context, Message: message})
	if w.logger != nil {
		w.logger.Warn("extraction warning", "container", w.containerName, "context", context, "err", err)
	}
	w.notify(stats.Event{Type: stats.EventTypeWarning, Container: w.containerName, Detail: context, Err: err})
}

func (w *Walker) notify(evt stats.Event) {
	if w.emit != nil {
		w.emit(evt)
	}
}

// sanitizeFolderName reduces a folder display name to a path-safe basename
// for the attachments layout.
func sanitizeFolderName(name string) string {
	s := folderNameRe.ReplaceAllString(name, "_")
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
