package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/tally/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the subset of the SES client used for delivery
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends notifications through AWS SES
type SESSender struct {
	client      sesAPI
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewSESSender loads the default AWS credential chain for region
func NewSESSender(ctx context.Context, region, fromAddress, baseURL string, logger *slog.Logger) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESSender(ses.NewFromConfig(cfg), fromAddress, baseURL, logger), nil
}

func newSESSender(client sesAPI, fromAddress, baseURL string, logger *slog.Logger) *SESSender {
	return &SESSender{
		client:      client,
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}
}

func (s *SESSender) Send(ctx context.Context, n Notification) error {
	msg, err := Render(n, s.baseURL)
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", n.Kind, err)
	}

	s.logger.Info("notification sent",
		slog.String("kind", string(n.Kind)),
		slog.String("email", logger.SanitizedEmail(n.To)),
		slog.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// LogSender writes notifications to the log instead of delivering them.
// Used in development; tokens are only logged outside production.
type LogSender struct {
	baseURL     string
	logger      *slog.Logger
	revealLinks bool
}

func NewLogSender(baseURL string, logger *slog.Logger, revealLinks bool) *LogSender {
	return &LogSender{baseURL: baseURL, logger: logger, revealLinks: revealLinks}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	msg, err := Render(n, s.baseURL)
	if err != nil {
		return err
	}

	attrs := []slog.Attr{
		slog.String("kind", string(n.Kind)),
		slog.String("email", logger.SanitizedEmail(n.To)),
		slog.String("subject", msg.Subject),
	}
	if s.revealLinks {
		attrs = append(attrs, slog.String("body", msg.Text))
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "notification logged", attrs...)
	return nil
}
