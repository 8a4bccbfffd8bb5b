// Package gmail implements a pipeline.Fetcher over the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/lchiayu/cardfeed/pkg/api"
)

// DefaultMaxResults caps message listing when a source does not set its own.
const DefaultMaxResults = 500

// Fetcher retrieves messages from the authenticated user's mailbox.
type Fetcher struct {
	client *gmail.Service
	logger *slog.Logger
}

// New creates a Gmail fetcher backed by an OAuth HTTP client.
func New(httpClient *http.Client, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Fetcher{client: client, logger: logger}, nil
}

// Fetch lists messages matching the query and resolves each to its full form,
// preserving list order.
func (f *Fetcher) Fetch(ctx context.Context, query string, maxResults int64) ([]*api.Message, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var msgs []*api.Message
	pageToken := ""
	for {
		call := f.client.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}

		for _, ref := range resp.Messages {
			if int64(len(msgs)) >= maxResults {
				return msgs, nil
			}
			msg, err := f.get(ctx, ref.Id)
			if err != nil {
				f.logger.Warn("failed to get message", "message_id", ref.Id, "error", err)
				continue
			}
			msgs = append(msgs, msg)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || int64(len(msgs)) >= maxResults {
			return msgs, nil
		}
	}
}

func (f *Fetcher) get(ctx context.Context, id string) (*api.Message, error) {
	msg, err := f.client.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	var subject string
	for _, header := range msg.Payload.Headers {
		if header.Name == "Subject" {
			subject = header.Value
			break
		}
	}

	html, plain := extractBodies(msg.Payload)

	return &api.Message{
		ID:      msg.Id,
		Subject: subject,
		Sent:    time.Unix(msg.InternalDate/1000, 0),
		HTML:    html,
		Plain:   plain,
	}, nil
}

// extractBodies walks the MIME tree collecting the first text/html and
// text/plain parts. A non-multipart message contributes its single body under
// its own mime type.
func extractBodies(part *gmail.MessagePart) (html, plain string) {
	if part == nil {
		return "", ""
	}

	if data := decodeBody(part.Body); data != "" {
		switch part.MimeType {
		case "text/html":
			html = data
		case "text/plain":
			plain = data
		}
	}

	for _, child := range part.Parts {
		h, p := extractBodies(child)
		if html == "" {
			html = h
		}
		if plain == "" {
			plain = p
		}
	}
	return html, plain
}

func decodeBody(body *gmail.MessagePartBody) string {
	if body == nil || body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(body.Data)
	if err != nil {
		// The API serves web-safe base64 without padding.
		if data, err = base64.RawURLEncoding.DecodeString(body.Data); err != nil {
			return ""
		}
	}
	return string(data)
}
