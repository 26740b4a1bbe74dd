package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/you/walletgate/domain"
)

type snsSender struct {
	client *sns.Client
}

// NewSNSSender sends SMS through AWS SNS using the default credential chain
func NewSNSSender(ctx context.Context, region string) (domain.SMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &snsSender{client: sns.NewFromConfig(awsCfg)}, nil
}

func (s *snsSender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish SMS via sns: %w", err)
	}
	return nil
}
