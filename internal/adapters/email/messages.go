package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Message categories, used as provider tags.
const (
	CategoryAccessRequested = "access_requested"
	CategoryAccessApproved  = "access_approved"
)

var accessRequestedTmpl = template.Must(template.New("access_requested").Parse(
	`<p>{{.Requester}} asked to join the tracker on {{.When}}.</p>
<p>Approve or deny the request from the <a href="{{.AdminURL}}">admin page</a>.</p>`))

var accessApprovedTmpl = template.Must(template.New("access_approved").Parse(
	`<p>Your request to join the tracker was approved with the role <strong>{{.Role}}</strong>.</p>
<p><a href="{{.AppURL}}">Open the tracker</a></p>`))

// renderBody executes a message template into an HTML body.
func renderBody(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// AccessRequested builds the notification sent to admins when a non-member asks to join.
// POST: ok is false when there is nobody to notify; err is set when the body cannot be built
func AccessRequested(admins []string, requester string, at time.Time, baseURL string) (req SendRequest, ok bool, err error) {
	if len(admins) == 0 {
		return SendRequest{}, false, nil
	}
	if requester == "" {
		requester = "A new user"
	}
	body, err := renderBody(accessRequestedTmpl, map[string]string{
		"Requester": requester,
		"When":      at.Format("Jan 2, 2006 15:04 MST"),
		"AdminURL":  strings.TrimRight(baseURL, "/") + "/admin",
	})
	if err != nil {
		return SendRequest{}, false, err
	}
	return SendRequest{
		To:       admins,
		Subject:  "New access request",
		HTML:     body,
		Category: CategoryAccessRequested,
	}, true, nil
}

// AccessApproved builds the message telling a requester they were let in.
// POST: ok is false when the requester has no email on file; err is set when the body
// cannot be built
func AccessApproved(to, roleLabel, baseURL string) (req SendRequest, ok bool, err error) {
	if to == "" {
		return SendRequest{}, false, nil
	}
	body, err := renderBody(accessApprovedTmpl, map[string]string{
		"Role":   roleLabel,
		"AppURL": strings.TrimRight(baseURL, "/") + "/",
	})
	if err != nil {
		return SendRequest{}, false, err
	}
	return SendRequest{
		To:       []string{to},
		Subject:  "Your access was approved",
		HTML:     body,
		Category: CategoryAccessApproved,
	}, true, nil
}
