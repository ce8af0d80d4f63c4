package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/mobistudy/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender delivers a single HTML email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// SESClient is the subset of the SES API used for sending
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService loads the default AWS credential chain for region
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESEmailServiceWithClient(client SESClient, fromAddress string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func (s *AWSSESEmailService) SendEmail(ctx context.Context, to, subject, html string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(html),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send email via SES",
			slog.String("to", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent",
		slog.String("to", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogEmailService writes emails to the application log instead of sending
// them. Used when no AWS region is configured.
type LogEmailService struct {
	logger *slog.Logger
	env    string
}

func NewLogEmailService(log *slog.Logger, env string) *LogEmailService {
	return &LogEmailService{logger: log, env: env}
}

func (s *LogEmailService) SendEmail(ctx context.Context, to, subject, html string) error {
	s.logger.InfoContext(ctx, "email not sent, no mail transport configured",
		slog.String("to", logger.SanitizedEmail(to)),
		slog.String("subject", subject),
		logger.RedactedAttr("html", html, s.env),
	)
	return nil
}
