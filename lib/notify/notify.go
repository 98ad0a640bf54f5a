package notify

import (
	"context"
	"fmt"
	"gcdfetch/lib/telemetry"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("gcdfetch.lib.notify")

// Message is the summary of a single run.
type Message struct {
	Subject string
	Body    string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type Config struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled reports whether enough is configured to send mail.
func (c Config) Enabled() bool {
	return c.Server != "" && c.EmailAddress != "" && len(c.To) > 0
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func sendMail(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

type SmtpNotifier struct {
	config Config
	send   sendFunc
}

func NewSmtpNotifier(config Config) SmtpNotifier {
	return SmtpNotifier{config: config, send: sendMail}
}

func (n SmtpNotifier) Notify(ctx context.Context, msg Message) error {
	_, span := tracer.Start(ctx, "Notify")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("gcdfetch <%s>", n.config.EmailAddress)
	mail.To = n.config.To
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body)

	port := n.config.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", n.config.Server, port)

	err := n.send(mail, addr, smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// Discard drops every message, used when no smtp server is configured.
type Discard struct{}

func (Discard) Notify(context.Context, Message) error {
	return nil
}

// New returns the notifier `config` describes.
func New(config Config) Notifier {
	if !config.Enabled() {
		return Discard{}
	}
	return NewSmtpNotifier(config)
}
