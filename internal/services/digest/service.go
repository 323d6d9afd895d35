// Package digest mails the current top analyses after ingestion cycles.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
	"github.com/ternarybob/specula/internal/services/mailer"
)

// Sender delivers a composed message
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Digest is one rendered report
type Digest struct {
	Subject  string
	Markdown string
	HTML     string
	PDF      []byte
	Entries  int
}

// Service builds and sends digests
type Service struct {
	storage interfaces.StorageManager
	sender  Sender
	config  common.DigestConfig
	now     func() time.Time
	logger  arbor.ILogger
}

// NewService creates a digest service. sender may be nil when only Build is used.
func NewService(storage interfaces.StorageManager, sender Sender, config common.DigestConfig, logger arbor.ILogger) *Service {
	if config.Top <= 0 {
		config.Top = 10
	}
	if strings.TrimSpace(config.Subject) == "" {
		config.Subject = "Specula top picks"
	}
	return &Service{
		storage: storage,
		sender:  sender,
		config:  config,
		now:     time.Now,
		logger:  logger,
	}
}

// Build renders the current top analyses
func (s *Service) Build(ctx context.Context) (*Digest, error) {
	records, err := s.storage.AnalysisStorage().ListTopAnalyses(ctx, s.config.Top)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entry := Entry{Analysis: record}
		inst, err := s.storage.InstrumentStorage().GetInstrument(ctx, record.InstrumentID)
		switch {
		case err == nil:
			entry.Instrument = inst
		case !errors.Is(err, interfaces.ErrNotFound):
			s.logger.Warn().Err(err).Str("instrument", record.InstrumentID).Msg("Failed to load instrument for digest")
		}
		entries = append(entries, entry)
	}

	now := s.now()
	d := &Digest{
		Subject:  fmt.Sprintf("%s - %s", s.config.Subject, now.UTC().Format("2006-01-02")),
		Markdown: RenderMarkdown(s.config.Subject, entries, now),
		Entries:  len(entries),
	}

	if d.HTML, err = RenderHTML(d.Markdown); err != nil {
		return nil, err
	}

	if s.config.AttachPDF && len(entries) > 0 {
		if d.PDF, err = RenderPDF(s.config.Subject, entries, now); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Send builds the digest and mails it to the configured recipients.
// An empty digest is not sent.
func (s *Service) Send(ctx context.Context) error {
	if s.sender == nil {
		return fmt.Errorf("digest sender not configured")
	}
	if len(s.config.Recipients) == 0 {
		return fmt.Errorf("digest has no recipients")
	}

	d, err := s.Build(ctx)
	if err != nil {
		return err
	}
	if d.Entries == 0 {
		s.logger.Debug().Msg("No analyses, digest not sent")
		return nil
	}

	msg := mailer.Message{
		To:      s.config.Recipients,
		Subject: d.Subject,
		Text:    d.Markdown,
		HTML:    d.HTML,
	}
	if len(d.PDF) > 0 {
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Filename:    "specula-digest-" + s.now().UTC().Format("20060102") + ".pdf",
			ContentType: "application/pdf",
			Content:     d.PDF,
		})
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	s.logger.Info().
		Int("entries", d.Entries).
		Strs("recipients", s.config.Recipients).
		Msg("Digest sent")
	return nil
}

// CycleRunner runs one ingestion cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*models.CycleReport, error)
}

// Notifier runs a cycle and sends the digest when it upserted analyses.
// Digest failures are logged; the cycle result is returned unchanged.
type Notifier struct {
	runner CycleRunner
	digest *Service
	logger arbor.ILogger
}

func NewNotifier(runner CycleRunner, digest *Service, logger arbor.ILogger) *Notifier {
	return &Notifier{runner: runner, digest: digest, logger: logger}
}

func (n *Notifier) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	report, err := n.runner.RunCycle(ctx)
	if err != nil || report == nil || report.AnalysesUpserted == 0 {
		return report, err
	}

	if err := n.digest.Send(ctx); err != nil {
		n.logger.Warn().Err(err).Msg("Digest failed")
	}
	return report, nil
}
