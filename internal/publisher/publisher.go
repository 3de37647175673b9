package publisher

//go:generate mockgen -source=publisher.go -destination=../mock/sns.go -package=mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
)

var ErrInvalidParams = errors.New("stack params must be a JSON object")

// SNSAPI is the subset of the SNS client used by Publisher.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ SNSAPI = (*sns.Client)(nil)

// UpdateRequest is the notification body that starts a stack update.
type UpdateRequest struct {
	StackName string         `json:"stackName"`
	Region    string         `json:"region"`
	Params    map[string]any `json:"params"`
}

// Publisher announces stack updates on an SNS topic.
type Publisher struct {
	api    SNSAPI
	logger zerolog.Logger
}

func NewPublisher(api SNSAPI, logger zerolog.Logger) *Publisher {
	return &Publisher{api: api, logger: logger}
}

// Publish sends the update request for stackName to topic. params is a JSON encoded object that is
// embedded as an object, not as a string. Transport errors are returned as is.
func (publisher *Publisher) Publish(ctx context.Context, topic, stackName, params, region string) error {
	message, err := NewUpdateMessage(stackName, params, region)
	if err != nil {
		return err
	}

	publisher.logger.Debug().Str("topic", topic).Msgf("Publishing update request: %s", message)

	output, err := publisher.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topic),
		Message:  aws.String(message),
	})
	if err != nil {
		return err
	}

	publisher.logger.Info().Str("topic", topic).Str("message_id", aws.ToString(output.MessageId)).Msgf("Requested update of stack %s", stackName)
	return nil
}

// NewUpdateMessage renders the wire payload of an update request.
func NewUpdateMessage(stackName, params, region string) (string, error) {
	decoded := map[string]any{}
	if strings.TrimSpace(params) != "" {
		if err := json.Unmarshal([]byte(params), &decoded); err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidParams, err)
		}
		if decoded == nil {
			return "", ErrInvalidParams
		}
	}

	payload, err := json.Marshal(UpdateRequest{
		StackName: stackName,
		Region:    region,
		Params:    decoded,
	})
	if err != nil {
		return "", err
	}

	return string(payload), nil
}
