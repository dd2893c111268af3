package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

// AWSSESEmailSender delivers codes using AWS SES.
type AWSSESEmailSender struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailSender creates an SES-backed sender.
func NewAWSSESEmailSender(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailSender, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailSender{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendRecoveryCode emails a password reset code.
func (s *AWSSESEmailSender) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	subject := "Your password reset code"
	body := fmt.Sprintf(`Someone requested a password reset for your account.

Your reset code is: %s

It expires at %s. If you did not request this, you can ignore this email;
your password will not change.
`, code, expiresAt.UTC().Format(time.RFC1123))

	return s.send(ctx, email, subject, body)
}

// SendVerificationCode emails an address verification code.
func (s *AWSSESEmailSender) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	subject := "Verify your email address"
	body := fmt.Sprintf(`Welcome! Enter this code to verify your email address: %s

It expires at %s.
`, code, expiresAt.UTC().Format(time.RFC1123))

	return s.send(ctx, email, subject, body)
}

func (s *AWSSESEmailSender) send(ctx context.Context, email, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		s.logger.Error("failed to send email",
			slog.String("to", pkglogger.MaskEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("to", pkglogger.MaskEmail(email)))
	return nil
}

// LogEmailSender is the development sender: it logs the code instead of
// delivering it. Never used in production.
type LogEmailSender struct {
	logger *slog.Logger
}

// NewLogEmailSender creates a logging sender.
func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) SendRecoveryCode(_ context.Context, email, code string, expiresAt time.Time) error {
	s.logger.Info("email delivery disabled, recovery code follows",
		slog.String("to", pkglogger.MaskEmail(email)),
		slog.String("code", code),
		slog.Time("expires_at", expiresAt))
	return nil
}

func (s *LogEmailSender) SendVerificationCode(_ context.Context, email, code string, expiresAt time.Time) error {
	s.logger.Info("email delivery disabled, verification code follows",
		slog.String("to", pkglogger.MaskEmail(email)),
		slog.String("code", code),
		slog.Time("expires_at", expiresAt))
	return nil
}
