// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// AppBaseURL prefixes links back to the form builder.
	AppBaseURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	for _, value := range append([]string{subject}, to...) {
		if strings.ContainsAny(value, "\r\n") {
			return fmt.Errorf("header value contains a line break")
		}
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-formbuilder"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "Veuillez consulter ce courriel dans un client de messagerie compatible HTML.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// OwnershipGrantedData fills the message sent to a newly added owner.
type OwnershipGrantedData struct {
	FormTitleEn string
	FormTitleFr string
	FormOwner   string
	FormID      string
	FormURL     string
}

// OwnershipTransferredData fills the message sent to a removed owner.
type OwnershipTransferredData struct {
	FormTitleEn string
	FormTitleFr string
	PastOwner   string
	NewOwner    string
	FormID      string
	FormURL     string
}

// SendOwnershipGranted tells an owner they were given access to a form.
func (s *Service) SendOwnershipGranted(to string, data OwnershipGrantedData) error {
	if data.FormURL == "" {
		data.FormURL = s.FormURL(data.FormID)
	}
	html, err := renderTemplate(ownershipGrantedTmpl, data)
	if err != nil {
		return fmt.Errorf("render ownership granted template: %w", err)
	}
	subject := fmt.Sprintf("You now have access to %s | Vous avez maintenant accès à %s", data.FormTitleEn, data.FormTitleFr)
	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendOwnershipTransferred tells a past owner who now owns a form.
func (s *Service) SendOwnershipTransferred(to string, data OwnershipTransferredData) error {
	if data.FormURL == "" {
		data.FormURL = s.FormURL(data.FormID)
	}
	html, err := renderTemplate(ownershipTransferredTmpl, data)
	if err != nil {
		return fmt.Errorf("render ownership transferred template: %w", err)
	}
	subject := fmt.Sprintf("Access to %s has changed | L'accès à %s a changé", data.FormTitleEn, data.FormTitleFr)
	return s.SendHTMLEmail([]string{to}, subject, html)
}

// FormURL links to the edit page of a form.
func (s *Service) FormURL(formID string) string {
	return strings.TrimRight(s.config.AppBaseURL, "/") + "/form-builder/" + formID + "/edit"
}

var (
	ownershipGrantedTmpl     = template.Must(template.New("granted").Parse(ownershipGrantedTemplate))
	ownershipTransferredTmpl = template.Must(template.New("transferred").Parse(ownershipTransferredTemplate))
)

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailStyle = `
        body { font-family: 'Noto Sans', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #26374a; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #26374a; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #26374a; }
`

const ownershipGrantedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.FormTitleEn}}</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header">
        <h1>GC Forms | Formulaires GC</h1>
    </div>

    <p>Hello {{.FormOwner}},</p>
    <p>You have been given access to the form <strong>{{.FormTitleEn}}</strong>.</p>

    <p lang="fr">Bonjour {{.FormOwner}},</p>
    <p lang="fr">Vous avez maintenant accès au formulaire <strong>{{.FormTitleFr}}</strong>.</p>

    <p>
        <a href="{{.FormURL}}" class="button">Open form | Ouvrir le formulaire</a>
    </p>
    <p class="link">{{.FormURL}}</p>

    <div class="footer">
        <p>Form ID | Identifiant du formulaire : {{.FormID}}</p>
    </div>
</body>
</html>`

const ownershipTransferredTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.FormTitleEn}}</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header">
        <h1>GC Forms | Formulaires GC</h1>
    </div>

    <p>Hello {{.PastOwner}},</p>
    <p>You no longer have access to the form <strong>{{.FormTitleEn}}</strong>. It is now owned by {{.NewOwner}}.</p>

    <p lang="fr">Bonjour {{.PastOwner}},</p>
    <p lang="fr">Vous n'avez plus accès au formulaire <strong>{{.FormTitleFr}}</strong>. Il appartient maintenant à {{.NewOwner}}.</p>

    <div class="footer">
        <p>Form ID | Identifiant du formulaire : {{.FormID}}</p>
    </div>
</body>
</html>`
