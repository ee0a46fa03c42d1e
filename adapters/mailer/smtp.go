package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/utils/log"
)

const otpSubject = "Your OTP Code"

// SMTP mails one-time passwords over implicit TLS.
type SMTP struct {
	cfg config.SMTP
}

func NewSMTP(cfg config.SMTP) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) SendOTP(ctx context.Context, to, code string) error {
	msg, err := otpMessage(s.cfg.From, to, code)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}

	log.WithCtx(ctx).Info("OTP mail sent", zap.String("to", to))
	return nil
}

func otpMessage(from, to, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(otpSubject)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Your OTP code is: %s, It will expire in 5 minutes.", code))
	return msg, nil
}
