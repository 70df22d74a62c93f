package channel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Message is one polled mailbox message. ID doubles as the monotonic cursor
// value; the feed must deliver messages in ascending ID order.
type Message struct {
	ID          string
	Subject     string
	Body        []byte // HTML or plain text
	Attachments []Attachment
}

type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// MessageSource is the external mailbox connector. It yields messages strictly
// after the given cursor.
type MessageSource interface {
	Messages(ctx context.Context, afterCursor string) ([]Message, error)
}

// CursorStore persists the last-processed mailbox cursor.
type CursorStore interface {
	GetMailCursor(mailbox string) (string, error)
	AdvanceMailCursor(mailbox, cursor string) error
}

// Mailbox turns a polled message feed into pipeline candidates: one per
// message body plus one per attachment. Inputs are transient buffers; the
// persisted cursor prevents reprocessing across polls while tenant-scoped
// dedup makes any overlap harmless.
type Mailbox struct {
	Source     MessageSource
	Cursors    CursorStore
	Mailbox    string // mailbox identifier, e.g. "inbox"
	TenantCode string // mailbox channels are single-tenant
}

func (m *Mailbox) Name() string { return "mailbox" }

func (m *Mailbox) SharedSource() bool { return true }

func (m *Mailbox) Scan(ctx context.Context, emit func(Candidate) error) error {
	cursor, err := m.Cursors.GetMailCursor(m.Mailbox)
	if err != nil {
		return fmt.Errorf("loading mailbox cursor: %w", err)
	}

	messages, err := m.Source.Messages(ctx, cursor)
	if err != nil {
		return fmt.Errorf("polling mailbox %s: %w", m.Mailbox, err)
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}

		safe := safeName(msg.Subject)
		if err := emit(Candidate{
			Name:       safe + ".eml",
			Title:      "Email: " + msg.Subject,
			Content:    msg.Body,
			TenantCode: m.TenantCode,
			Cursor:     msg.ID,
		}); err != nil {
			return err
		}

		for _, att := range msg.Attachments {
			if err := emit(Candidate{
				Name:       att.Name,
				Title:      strings.TrimSuffix(att.Name, filepath.Ext(att.Name)),
				Content:    att.Content,
				TenantCode: m.TenantCode,
				Cursor:     msg.ID,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finalize discards the transient buffer and advances the cursor. The cursor
// store only moves forward, so out-of-order worker completion cannot rewind it.
func (m *Mailbox) Finalize(c Candidate, _ Outcome) error {
	if c.Cursor == "" {
		return nil
	}
	return m.Cursors.AdvanceMailCursor(m.Mailbox, c.Cursor)
}

// safeName reduces a message subject to a filesystem-safe stem.
func safeName(subject string) string {
	var b strings.Builder
	for _, r := range subject {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		s = "message"
	}
	return s
}
