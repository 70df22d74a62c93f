package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// FileFeed reads a mailbox export: a JSON array of messages with base64
// attachment payloads, as produced by the external mail connector. It
// serves polls by filtering on the cursor, so re-reading the same export
// is harmless.
type FileFeed struct {
	Path string
}

type feedMessage struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Attachments []struct {
		Name        string `json:"name"`
		ContentType string `json:"content_type"`
		Content     []byte `json:"content"` // base64 in JSON
	} `json:"attachments"`
}

func (f *FileFeed) Messages(ctx context.Context, afterCursor string) ([]Message, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading mail export: %w", err)
	}

	var raw []feedMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing mail export %s: %w", f.Path, err)
	}

	var out []Message
	for _, m := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.ID == "" {
			return nil, fmt.Errorf("mail export %s: message without id", f.Path)
		}
		if m.ID <= afterCursor {
			continue
		}
		msg := Message{ID: m.ID, Subject: m.Subject, Body: []byte(m.Body)}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, Attachment{
				Name:        a.Name,
				ContentType: a.ContentType,
				Content:     a.Content,
			})
		}
		out = append(out, msg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
