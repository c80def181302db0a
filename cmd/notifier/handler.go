package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/models"
)

// emailSender is implemented by mailer.Mailer.
type emailSender interface {
	Send(recipient, subject, body string) error
}

var emailTemplate = template.Must(template.New("notification").Parse(`<html>
<body>
<p>{{.Message}}</p>
{{if .TripURL}}<p><a href="{{.TripURL}}">Open the trip</a></p>{{end}}
<p>You receive this e-mail because you use the trip planner.</p>
</body>
</html>`))

// subjectFor returns the mail subject of a notification type.
func subjectFor(event models.NotificationEvent) string {
	dest := event.Destination
	if dest == "" {
		dest = "your trip"
	}
	switch event.Type {
	case models.NotificationJoin:
		return "New member on " + dest
	case models.NotificationLeave:
		return "A member left " + dest
	case models.NotificationWeatherAlert:
		return "Weather alert for " + dest
	default:
		return "Trip planner notification"
	}
}

// newEventHandler decodes notification events and mails them to their recipient. Chat
// messages are acknowledged without mail; they are already delivered in the app.
func newEventHandler(sender emailSender, clientURL string, logger *zap.Logger) func(body []byte) error {
	clientURL = strings.TrimRight(strings.TrimSpace(strings.Split(clientURL, ",")[0]), "/")
	return func(body []byte) error {
		var event models.NotificationEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to decode notification event: %w", err)
		}
		if event.RecipientEmail == "" {
			return fmt.Errorf("notification event %s has no recipient", event.NotificationID)
		}
		if event.Type == models.NotificationMessage {
			logger.Debug("Skipping chat notification", zap.String("notificationID", event.NotificationID))
			return nil
		}

		data := struct {
			Message string
			TripURL string
		}{Message: event.Message}
		if clientURL != "" && event.TripID != "" {
			data.TripURL = clientURL + "/view-trip/" + event.TripID
		}
		var html bytes.Buffer
		if err := emailTemplate.Execute(&html, data); err != nil {
			return fmt.Errorf("failed to render notification e-mail: %w", err)
		}

		if err := sender.Send(event.RecipientEmail, subjectFor(event), html.String()); err != nil {
			return err
		}
		logger.Info("Notification e-mail sent",
			zap.String("notificationID", event.NotificationID),
			zap.String("type", event.Type),
			zap.String("recipient", event.RecipientEmail))
		return nil
	}
}
