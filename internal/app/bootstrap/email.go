package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/brickline/realty-leads/internal/config"
	"github.com/brickline/realty-leads/internal/notify"
	"github.com/brickline/realty-leads/pkg/logging"
)

// AWSConfigLoader builds SDK configuration from application config.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// BuildEmailSender picks the provider named by EMAIL_PROVIDER.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, loadAWS AWSConfigLoader) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider)); provider {
	case "", "stub":
		return notify.NewStubEmailSender(logger), nil

	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: SENDGRID_API_KEY is required for sendgrid email")
		}
		return sender, nil

	case "ses":
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: aws config loader required for ses email")
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger), nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", provider)
	}
}
