// -----------------------------------------------------------------------
// IMAP Source - newsletter headlines from a mailbox
// Credentials stored in KeyValue storage (imap_ prefix) take precedence
// over the [sources.imap] config section
// -----------------------------------------------------------------------

package sources

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

// KV keys holding mailbox settings
const (
	KeyIMAPHost          = "imap_host"
	KeyIMAPPort          = "imap_port"
	KeyIMAPUsername      = "imap_username"
	KeyIMAPPassword      = "imap_password"
	KeyIMAPUseTLS        = "imap_use_tls"
	KeyIMAPMailbox       = "imap_mailbox"
	KeyIMAPSubjectFilter = "imap_subject_filter"
)

const defaultIMAPSourceName = "Newsletter"

// IMAPSource turns unseen newsletter messages into raw items
type IMAPSource struct {
	defaults  common.IMAPSourceConfig
	kvStorage interfaces.KeyValueStorage
	now       func() time.Time
	logger    arbor.ILogger
}

// NewIMAPSource creates a mailbox source; kvStorage may be nil
func NewIMAPSource(cfg common.IMAPSourceConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *IMAPSource {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if strings.TrimSpace(cfg.SourceName) == "" {
		cfg.SourceName = defaultIMAPSourceName
	}
	return &IMAPSource{
		defaults:  cfg,
		kvStorage: kvStorage,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *IMAPSource) Name() string {
	return s.defaults.SourceName
}

// GetConfig returns the config section overlaid with any imap_* KV values
func (s *IMAPSource) GetConfig(ctx context.Context) *common.IMAPSourceConfig {
	config := s.defaults
	if s.kvStorage == nil {
		return &config
	}

	if host, err := s.kvStorage.Get(ctx, KeyIMAPHost); err == nil && host != "" {
		config.Host = host
	}
	if portStr, err := s.kvStorage.Get(ctx, KeyIMAPPort); err == nil && portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if username, err := s.kvStorage.Get(ctx, KeyIMAPUsername); err == nil && username != "" {
		config.Username = username
	}
	if password, err := s.kvStorage.Get(ctx, KeyIMAPPassword); err == nil && password != "" {
		config.Password = password
	}
	if tlsStr, err := s.kvStorage.Get(ctx, KeyIMAPUseTLS); err == nil && tlsStr != "" {
		config.UseTLS = strings.ToLower(tlsStr) == "true" || tlsStr == "1"
	}
	if mailbox, err := s.kvStorage.Get(ctx, KeyIMAPMailbox); err == nil && mailbox != "" {
		config.Mailbox = mailbox
	}
	if filter, err := s.kvStorage.Get(ctx, KeyIMAPSubjectFilter); err == nil && filter != "" {
		config.SubjectFilter = filter
	}

	return &config
}

// SetConfig saves mailbox credentials to KeyValue storage
func (s *IMAPSource) SetConfig(ctx context.Context, config *common.IMAPSourceConfig) error {
	if s.kvStorage == nil {
		return fmt.Errorf("no key/value storage configured")
	}

	tlsStr := "false"
	if config.UseTLS {
		tlsStr = "true"
	}

	settings := []struct {
		key, value, description string
	}{
		{KeyIMAPHost, config.Host, "IMAP server hostname"},
		{KeyIMAPPort, strconv.Itoa(config.Port), "IMAP server port"},
		{KeyIMAPUsername, config.Username, "IMAP username (email address)"},
		{KeyIMAPPassword, config.Password, "IMAP password or app password"},
		{KeyIMAPUseTLS, tlsStr, "Use TLS encryption"},
		{KeyIMAPMailbox, config.Mailbox, "Mailbox holding newsletters"},
		{KeyIMAPSubjectFilter, config.SubjectFilter, "Only messages whose subject contains this text"},
	}
	for _, kv := range settings {
		if err := s.kvStorage.Set(ctx, kv.key, kv.value, kv.description); err != nil {
			return fmt.Errorf("failed to set %s: %w", kv.key, err)
		}
	}

	s.logger.Info().
		Str("host", config.Host).
		Int("port", config.Port).
		Str("mailbox", config.Mailbox).
		Msg("IMAP configuration saved")

	return nil
}

// IsConfigured checks the minimum settings needed to log in
func (s *IMAPSource) IsConfigured(ctx context.Context) bool {
	config := s.GetConfig(ctx)
	return config.Host != "" && config.Username != "" && config.Password != ""
}

// Fetch reads unseen messages matching the subject filter
func (s *IMAPSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	config := s.GetConfig(ctx)
	if config.Host == "" || config.Username == "" || config.Password == "" {
		return nil, fmt.Errorf("IMAP not configured")
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	var (
		c   *client.Client
		err error
	)
	if config.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(config.Username, config.Password); err != nil {
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	mbox, err := c.Select(config.Mailbox, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", config.Mailbox, err)
	}
	if mbox.Messages == 0 {
		s.logger.Debug().Str("mailbox", config.Mailbox).Msg("Mailbox is empty")
		return []models.RawItem{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}
	if len(seqNums) == 0 {
		s.logger.Debug().Msg("No unseen messages")
		return []models.RawItem{}, nil
	}

	s.logger.Debug().Int("count", len(seqNums)).Msg("Found unseen messages")

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	messages := make(chan *imap.Message, len(seqNums))
	section := &imap.BodySectionName{Peek: true}

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}, messages)
	}()

	now := s.now()
	items := []models.RawItem{}
	read := new(imap.SeqSet)
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}

		if !subjectMatches(msg.Envelope.Subject, config.SubjectFilter) {
			continue
		}

		r := msg.GetBody(section)
		if r == nil {
			s.logger.Warn().Uint32("seq", msg.SeqNum).Msg("Message has no body section")
			continue
		}
		body, err := parseBody(r)
		if err != nil {
			s.logger.Warn().Err(err).Uint32("seq", msg.SeqNum).Msg("Failed to parse message body")
			continue
		}

		items = append(items, messageItem(config, msg.Envelope, msg.Uid, body, now))
		read.AddNum(msg.SeqNum)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if config.MarkAsRead && !read.Empty() {
		flags := []interface{}{imap.SeenFlag}
		if err := c.Store(read, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mark messages as read")
		}
	}

	return items, nil
}

func subjectMatches(subject, filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(subject), strings.ToLower(filter))
}

// messageItem maps an envelope and its text body onto a raw item
func messageItem(config *common.IMAPSourceConfig, env *imap.Envelope, uid uint32, body string, now time.Time) models.RawItem {
	item := models.RawItem{
		Title:       collapseSpace(env.Subject),
		Body:        body,
		SourceName:  config.SourceName,
		PublishedAt: env.Date,
		Provenance:  models.ProvenanceLive,
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = now
	}

	if id := strings.Trim(strings.TrimSpace(env.MessageId), "<>"); id != "" {
		item.CanonicalURL = "mid:" + url.PathEscape(id)
	} else {
		item.CanonicalURL = fmt.Sprintf("imap://%s/%s;UID=%d", config.Host, url.PathEscape(config.Mailbox), uid)
	}

	return item
}

// parseBody extracts the text of a MIME message, preferring text/plain over text/html
func parseBody(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			plain = string(b)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(b)
		}
	}

	if text := collapseSpace(plain); text != "" {
		return text, nil
	}
	return cleanHTML(html), nil
}
