// Package mailer sends the invite e-mail that carries a magic link.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// InviteEmail is everything the invite template needs.
type InviteEmail struct {
	To           string
	BusinessName string
	BusinessSlug string
	Link         string
}

// Mailer is implemented by HTTPMailer and LogMailer.
type Mailer interface {
	SendInvite(ctx context.Context, msg InviteEmail) error
}

// HTTPMailer posts JSON to a transactional e-mail API
// ({from, to, subject, text, html} with a bearer API key).
type HTTPMailer struct {
	client *resty.Client
	url    string
	from   string
}

func NewHTTPMailer(apiURL, apiKey, from string) *HTTPMailer {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "ordero-mailer/1.0")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPMailer{client: client, url: apiURL, from: from}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

func (m *HTTPMailer) SendInvite(ctx context.Context, msg InviteEmail) error {
	subject, text, body := renderInvite(msg)

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    m.from,
			To:      []string{msg.To},
			Subject: subject,
			Text:    text,
			HTML:    body,
		}).
		Post(m.url)
	if err != nil {
		return fmt.Errorf("send invite email: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send invite email: provider returned %d: %s",
			resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func renderInvite(msg InviteEmail) (subject, text, body string) {
	name := msg.BusinessName
	if name == "" {
		name = msg.BusinessSlug
	}
	subject = fmt.Sprintf("You're invited to manage %s on Ordero", name)
	text = fmt.Sprintf("You have been invited to manage orders for %s.\n\nOpen this link to accept:\n%s\n", name, msg.Link)
	body = fmt.Sprintf(`<p>You have been invited to manage orders for <strong>%s</strong>.</p><p><a href="%s">Accept the invite</a></p>`,
		html.EscapeString(name), html.EscapeString(msg.Link))
	return subject, text, body
}

// LogMailer writes the invite link to the log instead of sending it. Used
// when MAIL_API_URL is not configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendInvite(ctx context.Context, msg InviteEmail) error {
	m.logger.Info("invite email (not sent, no mail API configured)",
		zap.String("to", msg.To),
		zap.String("business", msg.BusinessSlug),
		zap.String("link", msg.Link),
	)
	return nil
}
