package emailnotifier

import (
	"context"
	"fmt"

	config "github.com/NordCoder/Alertus/internal/config/email-notifier"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends mail through AWS SES v2.
type SESSender struct {
	client     sesAPI
	from       string
	subjPrefix string
	configSet  string
	log        *zap.Logger
}

func NewSESSender(ctx context.Context, sesCfg config.SES, email config.Email, log *zap.Logger) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(sesCfg.Region)}
	if sesCfg.AccessKeyID != "" && sesCfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sesCfg.AccessKeyID, sesCfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if sesCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(sesCfg.Endpoint)
		}
	})
	return newSESSender(client, sesCfg, email, log), nil
}

func newSESSender(client sesAPI, sesCfg config.SES, email config.Email, log *zap.Logger) *SESSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SESSender{
		client:     client,
		from:       email.From,
		subjPrefix: email.SubjPrefix,
		configSet:  sesCfg.ConfigSet,
		log:        obs.Component(log, "email-notifier.ses"),
	}
}

func (s *SESSender) Send(ctx context.Context, to, subject, body string) error {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(withPrefix(s.subjPrefix, subject)), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if s.configSet != "" {
		in.ConfigurationSetName = aws.String(s.configSet)
	}
	out, err := s.client.SendEmail(ctx, in)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	s.log.Info("email sent", zap.String("to", to), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
