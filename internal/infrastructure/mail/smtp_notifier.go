package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

const maxListedErrors = 20

var ErrNoRecipient = errors.New("import owner has no email address")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier emails the import owner a summary of a finished import.
type SMTPNotifier struct {
	addr     string
	auth     smtp.Auth
	from     string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:     auth,
		from:     cfg.From,
		sendMail: smtp.SendMail,
	}
}

func (n *SMTPNotifier) NotifyImportFinished(ctx context.Context, event domain.ImportFinished) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := strings.TrimSpace(event.Owner.Email)
	if to == "" {
		return fmt.Errorf("%w: user %s", ErrNoRecipient, event.Owner.ID)
	}

	msg, err := renderMessage(n.from, to, event, time.Now())
	if err != nil {
		return err
	}

	if err := n.sendMail(n.addr, n.auth, n.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send import email to %s: %w", to, err)
	}
	return nil
}

func subjectFor(session domain.ImportSession) string {
	if session.Status == domain.StatusCompleted {
		return "Collaborator import finished successfully"
	}
	return "Collaborator import finished with errors"
}

type lineErrors struct {
	Line     int
	Messages []string
}

type messageData struct {
	From      string
	To        string
	Subject   string
	Date      string
	Owner     domain.User
	Session   domain.ImportSession
	TotalRows int64
	Progress  float64
	Failure   []string
	Errors    []lineErrors
	Omitted   int
	HasErrors bool
}

var messageTemplate = template.Must(template.New("import_finished").Parse(
	`From: {{.From}}
To: {{.To}}
Subject: {{.Subject}}
Date: {{.Date}}
MIME-Version: 1.0
Content-Type: text/plain; charset=UTF-8

Hello {{if .Owner.Name}}{{.Owner.Name}}{{else}}there{{end}},

Your collaborator import "{{.Session.OriginalFilename}}" has finished with status {{.Session.Status}}.

Total rows:      {{.TotalRows}}
Imported:        {{.Session.SuccessfulRows}}
Failed:          {{.Session.FailedRows}}
Progress:        {{printf "%.2f" .Progress}}%
{{- if .Failure}}

The import could not be processed:
{{- range .Failure}}
  - {{.}}
{{- end}}
{{- end}}
{{- if .HasErrors}}

Rows with errors:
{{- range .Errors}}
  Line {{.Line}}:{{range .Messages}} {{.}};{{end}}
{{- end}}
{{- if .Omitted}}
  ... and {{.Omitted}} more
{{- end}}
{{- end}}
`))

func renderMessage(from, to string, event domain.ImportFinished, now time.Time) ([]byte, error) {
	session := event.Session
	data := messageData{
		From:     from,
		To:       to,
		Subject:  subjectFor(session),
		Date:     now.Format(time.RFC1123Z),
		Owner:    event.Owner,
		Session:  session,
		Progress: session.ProgressPercentage(),
	}
	if session.TotalRows != nil {
		data.TotalRows = *session.TotalRows
	}
	data.Failure = flatten(session.Failure)
	data.Errors, data.Omitted = listErrors(session.Errors)
	data.HasErrors = len(data.Errors) > 0

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render import email: %w", err)
	}
	return bytes.ReplaceAll(buf.Bytes(), []byte("\n"), []byte("\r\n")), nil
}

// listErrors returns up to maxListedErrors lines in line order and how many
// were left out.
func listErrors(errs map[int]domain.RowErrors) ([]lineErrors, int) {
	lines := make([]int, 0, len(errs))
	for line := range errs {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	omitted := 0
	if len(lines) > maxListedErrors {
		omitted = len(lines) - maxListedErrors
		lines = lines[:maxListedErrors]
	}

	out := make([]lineErrors, 0, len(lines))
	for _, line := range lines {
		out = append(out, lineErrors{Line: line, Messages: flatten(errs[line])})
	}
	return out, omitted
}

func flatten(rowErrors domain.RowErrors) []string {
	fields := make([]string, 0, len(rowErrors))
	for field := range rowErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []string
	for _, field := range fields {
		for _, msg := range rowErrors[field] {
			out = append(out, field+" "+msg)
		}
	}
	return out
}
