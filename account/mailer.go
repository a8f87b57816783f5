package account

import (
	"context"

	"github.com/skillsenselab/identity/logger"
)

// Mailer delivers action tokens to users. The raw token appears only in
// the outgoing message; the service stores a digest.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes mails to the log instead of sending them. Used in
// development and in tests; production deployments plug in a real
// delivery implementation.
type LogMailer struct {
	log *logger.Logger
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer.
func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log.WithComponent("mailer")}
}

// SendVerification implements Mailer.
func (m *LogMailer) SendVerification(_ context.Context, email, token string) error {
	m.log.Info("verification mail", logger.Fields(logger.FieldEmail, email, "token", token))
	return nil
}

// SendPasswordReset implements Mailer.
func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.log.Info("password reset mail", logger.Fields(logger.FieldEmail, email, "token", token))
	return nil
}
