package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/hearthside/mailroom/internal/pkg/logger"
)

// SESSender sends email through AWS SES v2.
type SESSender struct {
	client    *sesv2.Client
	fromName  string
	fromEmail string
	timeout   time.Duration
}

// NewSESSender builds an SES-backed sender. Static credentials take
// precedence; with none supplied the default AWS credential chain applies.
// timeout bounds each SendEmail call; zero means the caller's context alone.
func NewSESSender(ctx context.Context, accessKey, secretKey, region, fromName, fromEmail string, timeout time.Duration) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESSender{
		client:    sesv2.NewFromConfig(cfg),
		fromName:  fromName,
		fromEmail: fromEmail,
		timeout:   timeout,
	}, nil
}

// Send delivers one email through SES. Provider rejections surface as a
// false result so the queue records them on the item rather than aborting
// the batch.
func (s *SESSender) Send(ctx context.Context, msg Message) (bool, error) {
	ctx, cancel := withSendTimeout(ctx, s.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return false, err
	}

	logger.Debug("ses send accepted", "to", msg.To, "message_id", aws.ToString(out.MessageId))
	return true, nil
}

// withSendTimeout bounds one provider call. A zero timeout leaves the
// caller's context untouched.
func withSendTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// LogSender writes sends to the log instead of delivering them. Used in
// development and by one-shot tools running without AWS credentials.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, msg Message) (bool, error) {
	logger.Info("dry-run send", "to", msg.To, "subject", msg.Subject)
	return true, nil
}
