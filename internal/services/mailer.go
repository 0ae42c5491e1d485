package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/mindmap-dev/mindmap/internal/config"
	"github.com/wneessen/go-mail"
)

const confirmationSubject = "MindMap Email Confirmation"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<h2>Welcome, {{.Username}}!</h2>
<p>Please confirm your email by clicking the link below:</p>
<a href="{{.Link}}">Confirm Email</a>
`))

// ConfirmationEmail is the data needed to send one confirmation message.
type ConfirmationEmail struct {
	To       string
	Username string
	Link     string
}

type Mailer interface {
	SendConfirmation(ctx context.Context, email ConfirmationEmail) error
}

// SMTPMailer delivers mail through an authenticated SMTP relay using
// STARTTLS.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) SendConfirmation(ctx context.Context, email ConfirmationEmail) error {
	body, err := RenderConfirmation(email)

	if err != nil {
		return err
	}

	msg := mail.NewMsg()

	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}

	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(confirmationSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	return m.client.DialAndSendWithContext(ctx, msg)
}

// RenderConfirmation renders the HTML body of a confirmation email. The
// username is escaped.
func RenderConfirmation(email ConfirmationEmail) (string, error) {
	var buf bytes.Buffer

	if err := confirmationTemplate.Execute(&buf, email); err != nil {
		return "", fmt.Errorf("failed to render confirmation email: %w", err)
	}

	return buf.String(), nil
}
