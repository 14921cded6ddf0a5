package notify

import (
	"context"
	"fmt"
)

// ActivationMail is the data handed to the mail transport. Template rendering
// and delivery are deployment concerns; only this contract is fixed.
type ActivationMail struct {
	To    string
	Name  string
	Token string
}

// Mailer sends the account-activation email.
type Mailer interface {
	SendActivationMail(ctx context.Context, mail ActivationMail) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, mail ActivationMail) error

// SendActivationMail implements Mailer.
func (f MailerFunc) SendActivationMail(ctx context.Context, mail ActivationMail) error {
	if f == nil {
		return nil
	}
	return f(ctx, mail)
}

// DevMailer logs the activation link instead of sending anything. Useful for
// local runs and tests.
type DevMailer struct {
	logger Logger
}

// NewDevMailer creates a logging mailer.
func NewDevMailer(logger Logger) *DevMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &DevMailer{logger: logger}
}

// SendActivationMail implements Mailer.
func (m *DevMailer) SendActivationMail(_ context.Context, mail ActivationMail) error {
	m.logger.Info("activation mail for %s (%s): %s", mail.To, mail.Name, activationLink(mail.Token))
	return nil
}

func activationLink(token string) string {
	return fmt.Sprintf("/account-activation/%s", token)
}
