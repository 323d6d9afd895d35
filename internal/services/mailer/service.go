// -----------------------------------------------------------------------
// Mailer Service - SMTP delivery of digests
// Credentials come from KeyValue storage (smtp_* keys) with config fallback
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
)

// KV keys for SMTP settings
const (
	KeySMTPHost     = "smtp_host"
	KeySMTPPort     = "smtp_port"
	KeySMTPUsername = "smtp_username"
	KeySMTPPassword = "smtp_password"
	KeySMTPFrom     = "smtp_from"
	KeySMTPFromName = "smtp_from_name"
	KeySMTPUseTLS   = "smtp_use_tls"
)

// Config is the resolved SMTP configuration
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// Attachment is a file attached to a message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is an outgoing email. Text and HTML become multipart/alternative
// when both are set.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// SendFunc delivers an encoded message
type SendFunc func(config *Config, to []string, msg []byte) error

// Option configures the Service
type Option func(*Service)

// WithSender replaces SMTP delivery, mainly for tests
func WithSender(send SendFunc) Option {
	return func(s *Service) {
		s.send = send
	}
}

// WithClock sets the Date header source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service sends email through the configured SMTP server
type Service struct {
	defaults  common.SMTPConfig
	kvStorage interfaces.KeyValueStorage
	send      SendFunc
	now       func() time.Time
	logger    arbor.ILogger
}

// NewService creates a mailer. kvStorage may be nil.
func NewService(defaults common.SMTPConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		defaults:  defaults,
		kvStorage: kvStorage,
		send:      sendSMTP,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetConfig merges KV settings over the configured defaults
func (s *Service) GetConfig(ctx context.Context) *Config {
	config := &Config{
		Host:     s.defaults.Host,
		Port:     s.defaults.Port,
		Username: s.defaults.Username,
		Password: s.defaults.Password,
		From:     s.defaults.From,
		FromName: s.defaults.FromName,
		UseTLS:   s.defaults.UseTLS,
	}
	if config.Port == 0 {
		config.Port = 587
	}

	if s.kvStorage == nil {
		return config
	}

	get := func(key string) string {
		v, err := s.kvStorage.Get(ctx, key)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get(KeySMTPHost); v != "" {
		config.Host = v
	}
	if v := get(KeySMTPPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	if v := get(KeySMTPUsername); v != "" {
		config.Username = v
	}
	if v := get(KeySMTPPassword); v != "" {
		config.Password = v
	}
	if v := get(KeySMTPFrom); v != "" {
		config.From = v
	}
	if v := get(KeySMTPFromName); v != "" {
		config.FromName = v
	}
	if v := get(KeySMTPUseTLS); v != "" {
		config.UseTLS = strings.EqualFold(v, "true") || v == "1"
	}

	return config
}

// IsConfigured checks the minimum settings needed to send
func (s *Service) IsConfigured(ctx context.Context) bool {
	config := s.GetConfig(ctx)
	return config.Host != "" && config.From != ""
}

// Send composes and delivers msg
func (s *Service) Send(ctx context.Context, msg Message) error {
	config := s.GetConfig(ctx)
	if config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if config.From == "" {
		return fmt.Errorf("from address not configured")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	raw, err := Compose(config, msg, s.now())
	if err != nil {
		return err
	}

	if err := s.send(config, msg.To, raw); err != nil {
		s.logger.Error().Err(err).Str("host", config.Host).Strs("to", msg.To).Msg("Failed to send email")
		return err
	}

	s.logger.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments)).
		Msg("Email sent")
	return nil
}

// Compose encodes msg as an RFC 5322 message
func Compose(config *Config, msg Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: config.FromName, Address: config.From}})

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: strings.TrimSpace(addr)})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create body: %w", err)
	}
	if msg.Text != "" || msg.HTML == "" {
		if err := writeInline(tw, "text/plain", msg.Text); err != nil {
			return nil, err
		}
	}
	if msg.HTML != "" {
		if err := writeInline(tw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close body: %w", err)
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		var ah mail.AttachmentHeader
		ah.SetContentType(contentType, nil)
		ah.SetFilename(att.Filename)
		ah.Set("Content-Transfer-Encoding", "base64")

		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment %s: %w", att.Filename, err)
		}
		if _, err := w.Write(att.Content); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close attachment %s: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

// sendSMTP uses implicit TLS on port 465, STARTTLS when UseTLS, plain otherwise
func sendSMTP(config *Config, to []string, msg []byte) error {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	if !config.UseTLS {
		return smtp.SendMail(addr, auth, config.From, to, msg)
	}

	tlsConfig := &tls.Config{ServerName: config.Host}

	var client *smtp.Client
	if config.Port == 465 {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		client, err = smtp.NewClient(conn, config.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	} else {
		var err error
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set mail recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
