/*
notify.go - Notification contract

PURPOSE:
  The engine reports successful approvals and settlements to the user via
  a Notifier. Delivery is best-effort and happens after the database
  transaction commits: a failed notification is logged by the caller and
  never rolls back points.
*/
package loyalty

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// TemplateKind selects which notification template to render.
type TemplateKind string

const (
	TemplateFormApproved       TemplateKind = "form_approved"
	TemplateFormRejected       TemplateKind = "form_rejected"
	TemplateRedemptionApproved TemplateKind = "redemption_approved"
	TemplateRedemptionRejected TemplateKind = "redemption_rejected"
)

// Notification is one message to a user.
type Notification struct {
	UserID UserID
	Email  string
	Kind   TemplateKind
	Params map[string]string
}

// Notifier delivers notifications. Implementations must be safe to call
// after the originating transaction has committed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier discards all notifications. Used in tests and when no
// delivery channel is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, n Notification) error { return nil }

// logNotifyFailure records a failed best-effort delivery. The point
// mutation has already committed, so failure is observability only.
func logNotifyFailure(n Notification, err error) {
	log.WithFields(log.Fields{
		"user_id": n.UserID,
		"kind":    n.Kind,
	}).WithError(err).Warn("notification failed")
}
