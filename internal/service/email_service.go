package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/mail"
	"github.com/Brownie44l1/extension-admin/internal/models"
	"go.uber.org/zap"
)

// ==============================================
// EMAIL SERVICE
// ==============================================

// EmailService is the Notifier backed by a mail.Mailer.
type EmailService struct {
	mailer mail.Mailer
	from   string
	log    *zap.Logger
}

func NewEmailService(mailer mail.Mailer, from string, log *zap.Logger) *EmailService {
	return &EmailService{
		mailer: mailer,
		from:   from,
		log:    log.Named("email"),
	}
}

// Send delivers one message. Failures are returned to the caller, never retried.
func (s *EmailService) Send(ctx context.Context, address, subject, body string) error {
	err := s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      address,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Debug("email sent", zap.String("to", address), zap.String("subject", subject))
	return nil
}

// ==============================================
// EMAIL TEMPLATES
// ==============================================

// OTPEmailContent renders the subject and body carrying code for purpose.
func OTPEmailContent(purpose models.Purpose, code string, ttl time.Duration) (subject string, body string) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	switch purpose {
	case models.PurposeRegistration:
		subject = "Confirm Your Email - Extension Admin"
		body = fmt.Sprintf(`Hello,

Thank you for registering with Extension Admin.

Your email confirmation code is: %s

This code will expire in %d minutes.

If you didn't request this code, please ignore this email.

Best regards,
Extension Admin Team
`, code, minutes)

	case models.PurposeLogin:
		subject = "Your Sign-In Code - Extension Admin"
		body = fmt.Sprintf(`Hello,

Use this code to sign in to Extension Admin:

Sign-in code: %s

This code will expire in %d minutes.

If you didn't try to sign in, you can ignore this email. Nobody can sign in without the code.

Best regards,
Extension Admin Team
`, code, minutes)

	default:
		subject = "Your Verification Code - Extension Admin"
		body = fmt.Sprintf(`Hello,

Your verification code is: %s

This code will expire in %d minutes.

Best regards,
Extension Admin Team
`, code, minutes)
	}

	return subject, body
}
