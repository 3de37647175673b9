package queue

//go:generate mockgen -source=sqs.go -destination=../mock/sqs.go -package=mock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// SQSAPI is the subset of the SQS client used by SQSSource.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var _ SQSAPI = (*sqs.Client)(nil)

type SQSConfig struct {
	// Queue is either a queue name or a full queue URL.
	Queue string
	// OwnerAccountId is the AWS account owning the queue, empty for the caller's own account.
	OwnerAccountId    string
	MaxMessages       int32
	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

// SQSSource reads stack event notifications from an SQS queue.
type SQSSource struct {
	api      SQSAPI
	queueUrl string
	config   SQSConfig
	logger   zerolog.Logger
}

// NewSQSSource resolves the queue and returns a Source bound to it.
// Resolution errors wrap ErrConnection.
func NewSQSSource(ctx context.Context, api SQSAPI, config SQSConfig, logger zerolog.Logger) (*SQSSource, error) {
	if config.Queue == "" {
		return nil, fmt.Errorf("%w: queue name is empty", ErrConnection)
	}

	source := &SQSSource{
		api:    api,
		config: config,
		logger: logger,
	}

	if isQueueUrl(config.Queue) {
		source.queueUrl = config.Queue
		return source, nil
	}

	input := &sqs.GetQueueUrlInput{QueueName: aws.String(config.Queue)}
	if config.OwnerAccountId != "" {
		input.QueueOwnerAWSAccountId = aws.String(config.OwnerAccountId)
	}

	output, err := api.GetQueueUrl(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't resolve queue %q (owner %q): %w", ErrConnection, config.Queue, config.OwnerAccountId, err)
	}

	source.queueUrl = aws.ToString(output.QueueUrl)
	logger.Debug().Msgf("Resolved queue %s to %s", config.Queue, source.queueUrl)

	return source, nil
}

// QueueUrl returns the resolved queue URL.
func (source *SQSSource) QueueUrl() string {
	return source.queueUrl
}

// FetchBatch receives up to MaxMessages pending messages.
func (source *SQSSource) FetchBatch(ctx context.Context) ([]RawMessage, error) {
	output, err := source.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(source.queueUrl),
		MaxNumberOfMessages: source.config.MaxMessages,
		WaitTimeSeconds:     source.config.WaitTimeSeconds,
		VisibilityTimeout:   source.config.VisibilityTimeout,
	})
	if err != nil {
		var notExist *types.QueueDoesNotExist
		if errors.As(err, &notExist) {
			return nil, fmt.Errorf("%w: %s", ErrQueueGone, source.queueUrl)
		}
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]RawMessage, 0, len(output.Messages))
	for _, message := range output.Messages {
		messages = append(messages, RawMessage{
			Id:            aws.ToString(message.MessageId),
			Body:          aws.ToString(message.Body),
			ReceiptHandle: aws.ToString(message.ReceiptHandle),
		})
	}

	return messages, nil
}

// Delete removes the message from the queue. An expired or unknown receipt handle counts as deleted.
func (source *SQSSource) Delete(ctx context.Context, message RawMessage) error {
	source.logger.Debug().Str("message_id", message.Id).Msg("Deleting message")

	_, err := source.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(source.queueUrl),
		ReceiptHandle: aws.String(message.ReceiptHandle),
	})
	if err != nil {
		var invalidHandle *types.ReceiptHandleIsInvalid
		if errors.As(err, &invalidHandle) {
			source.logger.Debug().Str("message_id", message.Id).Msg("Receipt handle is no longer valid, message already acknowledged")
			return nil
		}
		return fmt.Errorf("failed to delete message %s: %w", message.Id, err)
	}

	return nil
}

func isQueueUrl(queue string) bool {
	return strings.HasPrefix(queue, "https://") || strings.HasPrefix(queue, "http://")
}
