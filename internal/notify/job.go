// Package notify renders and delivers the emails produced by the auth and
// join-request workflows, either in-process or through a message queue.
package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/projectplus/apiserver/types"
)

// Kinds of email.
const (
	KindVerification = "verification"
	KindReset        = "reset"
	KindJoinRequest  = "join_request"
	KindOutcome      = "request_outcome"
)

// Job is the serialisable description of one email. It is the payload
// published to the mail queue.
type Job struct {
	Kind      string              `json:"kind"`
	To        string              `json:"to"`
	Name      string              `json:"name"`
	Code      string              `json:"code,omitempty"`
	Project   string              `json:"project,omitempty"`
	Candidate string              `json:"candidate,omitempty"`
	Status    types.RequestStatus `json:"status,omitempty"`
}

// Email is a rendered message ready for a Mailer.
type Email struct {
	To      string
	Subject string
	HTML    string
}

var subjects = map[string]string{
	KindVerification: "Your Verification Code",
	KindReset:        "Reset Your Password - Action Required",
	KindJoinRequest:  "New request to join your project",
	KindOutcome:      "Update on your project join request",
}

var templates = template.Must(template.New("mail").Parse(`
{{define "layout"}}<html><body><div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<p>Hello {{.Name}},</p>
{{.Body}}
<p>Best regards,<br>The ProjectPlus Team</p>
</div></body></html>{{end}}

{{define "verification"}}<p>Thank you for registering with ProjectPlus. Your verification code is:</p>
<p style="font-size: 24px; font-weight: bold;">{{.Code}}</p>
<p>The code expires in one hour. If you did not register, ignore this email.</p>{{end}}

{{define "reset"}}<p>We received a request to reset your password. Your reset code is:</p>
<p style="font-size: 24px; font-weight: bold;">{{.Code}}</p>
<p>The code expires in five minutes. If you did not ask for a reset, ignore this email.</p>{{end}}

{{define "join_request"}}<p><strong>{{.Candidate}}</strong> has asked to join your project <strong>{{.Project}}</strong>.</p>
<p>Sign in to ProjectPlus to approve or reject the request.</p>{{end}}

{{define "request_outcome"}}<p>Your request to join <strong>{{.Project}}</strong> was
{{if eq .Status "APPROVED"}}<strong>approved</strong>. Welcome to the team!{{else}}<strong>rejected</strong>.{{end}}</p>{{end}}
`))

type layout struct {
	Job
	Body template.HTML
}

// Render builds the email described by job.
func Render(job Job) (Email, error) {
	subject, ok := subjects[job.Kind]
	if !ok {
		return Email{}, fmt.Errorf("notify: unknown email kind %q", job.Kind)
	}
	if job.To == "" {
		return Email{}, fmt.Errorf("notify: %s email has no recipient", job.Kind)
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, job.Kind, job); err != nil {
		return Email{}, fmt.Errorf("notify: render %s: %w", job.Kind, err)
	}
	var page bytes.Buffer
	if err := templates.ExecuteTemplate(&page, "layout", layout{Job: job, Body: template.HTML(body.String())}); err != nil {
		return Email{}, fmt.Errorf("notify: render %s: %w", job.Kind, err)
	}
	return Email{To: job.To, Subject: subject, HTML: page.String()}, nil
}
