package sources

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/storage/badger"
)

func newTestKV(t *testing.T) interfaces.KeyValueStorage {
	t.Helper()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager.KeyValueStorage()
}

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain text",
			raw: crlf(`From: desk@news.example.com
Subject: Morning brief
Content-Type: text/plain; charset=utf-8

ACME   wins FDA approval.
Shares up 8%.
`),
			want: "ACME wins FDA approval. Shares up 8%.",
		},
		{
			name: "alternative prefers plain",
			raw: crlf(`From: desk@news.example.com
Subject: Morning brief
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Plain version
--b1
Content-Type: text/html; charset=utf-8

<p>HTML <b>version</b></p>
--b1--
`),
			want: "Plain version",
		},
		{
			name: "html only is cleaned",
			raw: crlf(`From: desk@news.example.com
Subject: Morning brief
Content-Type: text/html; charset=utf-8

<p>Rocket launch <em>window</em> opens</p>
`),
			want: "Rocket launch window opens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBody(strings.NewReader(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageItem(t *testing.T) {
	cfg := &common.IMAPSourceConfig{Host: "mail.example.com", Mailbox: "INBOX", SourceName: "Newsletter"}
	sent := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	item := messageItem(cfg, &imap.Envelope{
		Subject:   " Daily   brief: ACME ",
		Date:      sent,
		MessageId: "<abc123@news.example.com>",
	}, 42, "body", fetchNow)

	assert.Equal(t, "Daily brief: ACME", item.Title)
	assert.Equal(t, "mid:abc123@news.example.com", item.CanonicalURL)
	assert.Equal(t, "Newsletter", item.SourceName)
	assert.True(t, item.PublishedAt.Equal(sent))

	item = messageItem(cfg, &imap.Envelope{Subject: "No id"}, 42, "", fetchNow)
	assert.Equal(t, "imap://mail.example.com/INBOX;UID=42", item.CanonicalURL)
	assert.True(t, item.PublishedAt.Equal(fetchNow))
}

func TestSubjectMatches(t *testing.T) {
	assert.True(t, subjectMatches("Anything", ""))
	assert.True(t, subjectMatches("Morning Brief: markets", "morning brief"))
	assert.False(t, subjectMatches("Your receipt", "brief"))
}

func TestIMAPSource_ConfigPrecedence(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	src := NewIMAPSource(common.IMAPSourceConfig{
		Host:     "cfg-host",
		Port:     993,
		Username: "cfg-user",
		Password: "cfg-pass",
		UseTLS:   true,
		Mailbox:  "Newsletters",
	}, kv, arbor.NewLogger())

	assert.Equal(t, defaultIMAPSourceName, src.Name())

	config := src.GetConfig(ctx)
	assert.Equal(t, "cfg-host", config.Host)
	assert.Equal(t, "Newsletters", config.Mailbox)
	assert.True(t, src.IsConfigured(ctx))

	require.NoError(t, kv.Set(ctx, KeyIMAPHost, "kv-host", ""))
	require.NoError(t, kv.Set(ctx, KeyIMAPPort, "143", ""))
	require.NoError(t, kv.Set(ctx, KeyIMAPUseTLS, "false", ""))

	config = src.GetConfig(ctx)
	assert.Equal(t, "kv-host", config.Host)
	assert.Equal(t, 143, config.Port)
	assert.False(t, config.UseTLS)
	assert.Equal(t, "cfg-user", config.Username, "unset keys fall back to config")
}

func TestIMAPSource_SetConfig(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	src := NewIMAPSource(common.IMAPSourceConfig{}, kv, arbor.NewLogger())

	assert.False(t, src.IsConfigured(ctx))

	err := src.SetConfig(ctx, &common.IMAPSourceConfig{
		Host:          "imap.example.com",
		Port:          993,
		Username:      "reader@example.com",
		Password:      "secret",
		UseTLS:        true,
		Mailbox:       "Briefs",
		SubjectFilter: "brief",
	})
	require.NoError(t, err)

	config := src.GetConfig(ctx)
	assert.Equal(t, "imap.example.com", config.Host)
	assert.Equal(t, "Briefs", config.Mailbox)
	assert.Equal(t, "brief", config.SubjectFilter)
	assert.True(t, src.IsConfigured(ctx))

	pairs, err := kv.ListByPrefix(ctx, "imap_")
	require.NoError(t, err)
	assert.Len(t, pairs, 7)
}

func TestIMAPSource_FetchUnconfigured(t *testing.T) {
	src := NewIMAPSource(common.IMAPSourceConfig{}, nil, arbor.NewLogger())

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
	assert.Error(t, src.SetConfig(context.Background(), &common.IMAPSourceConfig{}))
}
