/*
Package notify renders and delivers user notifications.

PURPOSE:
  Implements loyalty.Notifier. Messages are rendered from embedded HTML
  templates and handed to a Sender. Delivery is best-effort: the engine
  calls Notify only after the originating transaction has committed, and
  logs failures without unwinding points.

SENDERS:
  LogSender writes rendered messages to the structured log. A production
  deployment would supply an SMTP- or provider-backed Sender instead; the
  engine does not care which.

SEE ALSO:
  - loyalty/notify.go: The Notifier contract
  - templates/: Embedded message bodies
*/
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	log "github.com/sirupsen/logrus"

	"github.com/warp/loyalty-engine/loyalty"
)

//go:embed templates/*.html
var templateFS embed.FS

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	log.WithFields(log.Fields{
		"to":      to,
		"subject": subject,
	}).Info("notification")
	return nil
}

var subjects = map[loyalty.TemplateKind]string{
	loyalty.TemplateFormApproved:       "Milestone approved - points awarded",
	loyalty.TemplateFormRejected:       "Milestone submission rejected",
	loyalty.TemplateRedemptionApproved: "Redemption approved",
	loyalty.TemplateRedemptionRejected: "Redemption rejected - points returned",
}

// Mailer renders templates and passes the result to its Sender.
type Mailer struct {
	templates *template.Template
	sender    Sender
}

func NewMailer(sender Sender) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}
	return &Mailer{templates: tmpl, sender: sender}, nil
}

// Notify implements loyalty.Notifier.
func (m *Mailer) Notify(ctx context.Context, n loyalty.Notification) error {
	subject, ok := subjects[n.Kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	var body bytes.Buffer
	if err := m.templates.ExecuteTemplate(&body, string(n.Kind)+".html", n.Params); err != nil {
		return fmt.Errorf("failed to render %s: %w", n.Kind, err)
	}
	return m.sender.Send(ctx, n.Email, subject, body.String())
}
