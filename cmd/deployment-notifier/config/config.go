package config

import (
	"errors"
	"time"

	envConfig "github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/shini4i/deployment-notifier/internal/models"
)

const (
	LogFormatText = "text"
)

type WebhookConfig struct {
	Enabled              bool   `env:"WEBHOOK_ENABLED" envDefault:"false" json:"enabled"`
	Url                  string `env:"WEBHOOK_URL" validate:"omitempty,url" json:"url,omitempty"`
	ContentType          string `env:"WEBHOOK_CONTENT_TYPE" envDefault:"application/json" json:"content_type"`
	Format               string `env:"WEBHOOK_FORMAT" envDefault:"{\"session\":{{json .SessionId}},\"stack\":{{json .StackName}},\"outcome\":{{json .Outcome}},\"status\":{{json .ResourceStatus}},\"reason\":{{json .Reason}}}" json:"format"`
	AuthorizationHeader  string `env:"WEBHOOK_AUTHORIZATION_HEADER_NAME" envDefault:"Authorization" json:"authorization_header"`
	Token                string `env:"WEBHOOK_AUTHORIZATION_HEADER_VALUE" json:"-"`
	AllowedResponseCodes []int  `env:"WEBHOOK_ALLOWED_RESPONSE_CODES" envDefault:"200" json:"allowed_response_codes"`
}

type CommonConfig struct {
	Region         string `env:"AWS_REGION" envDefault:"eu-west-1" validate:"required" json:"region"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info" json:"log_level"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text" json:"-"`
	PushgatewayUrl string `env:"PUSHGATEWAY_URL" validate:"omitempty,url" json:"pushgateway_url,omitempty"`
}

type PublishConfig struct {
	Common      CommonConfig `json:"common"`
	TopicArn    string       `env:"SNS_TOPIC_ARN" validate:"required" json:"topic_arn"`
	StackName   string       `env:"STACK_NAME" validate:"required" json:"stack_name"`
	StackParams string       `env:"STACK_PARAMS" envDefault:"{}" json:"-"`
	StackRegion string       `env:"STACK_REGION" json:"stack_region,omitempty"` // defaults to the AWS region
}

type WatchConfig struct {
	Common            CommonConfig  `json:"common"`
	Queue             string        `env:"SQS_QUEUE" validate:"required" json:"queue"` // queue name or URL
	QueueOwner        string        `env:"SQS_QUEUE_OWNER" validate:"omitempty,numeric,len=12" json:"queue_owner,omitempty"`
	StackName         string        `env:"STACK_NAME" validate:"required" json:"stack_name"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1s" validate:"gt=0" json:"poll_interval"`
	Timeout           time.Duration `env:"WATCH_TIMEOUT" envDefault:"30m" validate:"gte=0" json:"timeout"` // zero disables the deadline
	MaxMessages       int32         `env:"SQS_MAX_MESSAGES" envDefault:"10" validate:"min=1,max=10" json:"max_messages"`
	WaitTimeSeconds   int32         `env:"SQS_WAIT_TIME_SECONDS" envDefault:"0" validate:"min=0,max=20" json:"wait_time_seconds"`
	VisibilityTimeout int32         `env:"SQS_VISIBILITY_TIMEOUT" envDefault:"0" validate:"min=0,max=43200" json:"visibility_timeout"`
	SuccessStatuses   []string      `env:"SUCCESS_STATUSES" json:"success_statuses"`
	RollbackPrefix    string        `env:"ROLLBACK_PREFIX" envDefault:"UPDATE_ROLLBACK" validate:"required" json:"rollback_prefix"`
	MaxAttempts       uint          `env:"WATCH_MAX_ATTEMPTS" envDefault:"0" json:"max_attempts"` // zero polls until the timeout
	StackResourceType string        `env:"STACK_RESOURCE_TYPE" envDefault:"AWS::CloudFormation::Stack" json:"stack_resource_type"`
	AnyResourceType   bool          `env:"ACCEPT_ANY_RESOURCE_TYPE" envDefault:"false" json:"accept_any_resource_type"`
	Webhook           WebhookConfig `json:"webhook"`
}

// NewPublishConfig parses the publish configuration from environment variables.
// Validation happens in Validate, after command line flags were applied.
func NewPublishConfig() (*PublishConfig, error) {
	var config PublishConfig

	if err := envConfig.Parse(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// NewWatchConfig parses the watch configuration from environment variables.
// Validation happens in Validate, after command line flags were applied.
func NewWatchConfig() (*WatchConfig, error) {
	var config WatchConfig

	if err := envConfig.Parse(&config); err != nil {
		return nil, err
	}

	if len(config.SuccessStatuses) == 0 {
		config.SuccessStatuses = append([]string{}, models.DefaultSuccessStatuses...)
	}

	return &config, nil
}

// Validate checks the configuration against its validation rules.
func (config *PublishConfig) Validate() error {
	return validator.New().Struct(config)
}

// GetStackRegion returns the region announced in the update request.
func (config *PublishConfig) GetStackRegion() string {
	if config.StackRegion != "" {
		return config.StackRegion
	}
	return config.Common.Region
}

// Validate checks the configuration against its validation rules.
func (config *WatchConfig) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}
	if config.Webhook.Enabled && config.Webhook.Url == "" {
		return errors.New("webhook is enabled but WEBHOOK_URL is not set")
	}
	return nil
}
