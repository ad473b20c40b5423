// Package notify composes and dispatches the access notification a
// customer receives once their session is ready. Delivery is
// fire-and-forget: senders report errors, callers log them and move on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type AccessDetails struct {
	PodName      string
	Address      string
	StartTime    time.Time
	AccessCode   string
	SessionToken string
}

type Notifier interface {
	SendAccessNotification(ctx context.Context, recipient string, details AccessDetails) error
}

type Message struct {
	Subject string
	HTML    string
}

// BuildAccessMessage renders the booking email. manageBaseURL is the
// customer-facing site hosting the session management page.
func BuildAccessMessage(details AccessDetails, manageBaseURL string) Message {
	start := FormatStartTime(details.StartTime)
	subject := fmt.Sprintf("Your session at %s from %s", details.PodName, start)
	manageLink := fmt.Sprintf("%s/session?t=%s", manageBaseURL, details.SessionToken)

	html := fmt.Sprintf(`<html>
  <body>
    <h2>Thanks for booking!</h2>
    <p>Your session details are shown below:</p>
    <p><strong>Start Time:</strong> %s</p>
    <p><strong>Access Code:</strong> %s</p>
    <p>To access your workspace, please go to <strong>%s</strong> and enter your access code on the pod's keypad.</p>
    <p><a href="%s">Manage Your Session</a></p>
  </body>
</html>`, start, details.AccessCode, details.Address, manageLink)

	return Message{Subject: subject, HTML: html}
}

// FormatStartTime renders a start time the way it appears in customer
// email, e.g. "2nd January 2026 @ 3PM".
func FormatStartTime(t time.Time) string {
	return fmt.Sprintf("%s %s %d @ %s", ordinal(t.Day()), t.Month().String(), t.Year(), t.Format("3PM"))
}

func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}

// LogNotifier records the notification instead of delivering it. Used
// in environments without an email integration and as the default in
// tests.
type LogNotifier struct {
	logger        *slog.Logger
	manageBaseURL string
}

func NewLogNotifier(logger *slog.Logger, manageBaseURL string) *LogNotifier {
	return &LogNotifier{logger: logger, manageBaseURL: manageBaseURL}
}

func (n *LogNotifier) SendAccessNotification(ctx context.Context, recipient string, details AccessDetails) error {
	msg := BuildAccessMessage(details, n.manageBaseURL)
	n.logger.InfoContext(ctx, "access notification",
		"recipient", recipient,
		"subject", msg.Subject,
		"pod", details.PodName,
	)
	return nil
}
