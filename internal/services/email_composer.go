package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/BradenHooton/mobistudy/internal/models"
)

// ComposedEmail is a rendered subject and HTML body
type ComposedEmail struct {
	Title   string
	Content string
}

type StudyFetcher interface {
	GetByKey(ctx context.Context, key string) (*models.Study, error)
}

var (
	statusUpdateTemplate = template.Must(template.New("status").Parse(
		`<p>Dear {{.Name}},</p><p>{{.Body}}</p><p>The Mobistudy team</p>`))

	resetPasswordTemplate = template.Must(template.New("reset").Parse(
		`<p>You have requested to reset your Mobistudy password.</p>` +
			`<p>Follow <a href="{{.Link}}">this link</a> to choose a new password, or paste the following code in the app:</p>` +
			`<p><code>{{.Token}}</code></p>` +
			`<p>The link expires in 24 hours. If you did not request a reset you can ignore this message.</p>`))
)

// EmailComposer renders the emails sent to users
type EmailComposer struct {
	studies StudyFetcher
}

func NewEmailComposer(studies StudyFetcher) *EmailComposer {
	return &EmailComposer{studies: studies}
}

// StudyStatusUpdate renders the notification sent when a participant's
// status in a study changes
func (c *EmailComposer) StudyStatusUpdate(ctx context.Context, studyKey string, participant *models.Participant) (*ComposedEmail, error) {
	study, err := c.studies.GetByKey(ctx, studyKey)
	if err != nil {
		return nil, fmt.Errorf("load study %s: %w", studyKey, err)
	}

	title := study.Generalities.Title
	status := ""
	if i := participant.StudyIndex(studyKey); i >= 0 {
		status = participant.Studies[i].CurrentStatus
	}

	var subject, body string
	switch status {
	case models.StudyStatusAccepted:
		subject = "Study " + title + " accepted"
		body = "Thank you for accepting to participate in the study " + title + "."
	case models.StudyStatusRejected:
		subject = "Study " + title + " rejected"
		body = "You have declined to participate in the study " + title + "."
	case models.StudyStatusWithdrawn:
		subject = "Study " + title + " withdrawn"
		body = "You have withdrawn from the study " + title + ". Thank you for your time."
	case models.StudyStatusCompleted:
		subject = "Study " + title + " completed"
		body = "You have completed the study " + title + ". Thank you for your participation."
	default:
		subject = "Study " + title + " status update"
		body = fmt.Sprintf("Your status in the study %s is now %q.", title, status)
	}

	name := participant.Name
	if name == "" {
		name = "participant"
	}

	var buf bytes.Buffer
	if err := statusUpdateTemplate.Execute(&buf, map[string]string{"Name": name, "Body": body}); err != nil {
		return nil, fmt.Errorf("render status email: %w", err)
	}

	return &ComposedEmail{Title: subject, Content: buf.String()}, nil
}

// ResetPassword renders the password reset email
func (c *EmailComposer) ResetPassword(link, token string) (*ComposedEmail, error) {
	var buf bytes.Buffer
	if err := resetPasswordTemplate.Execute(&buf, map[string]string{"Link": link, "Token": token}); err != nil {
		return nil, fmt.Errorf("render reset email: %w", err)
	}
	return &ComposedEmail{Title: "Mobistudy password reset", Content: buf.String()}, nil
}
