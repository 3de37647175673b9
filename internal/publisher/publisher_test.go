package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shini4i/deployment-notifier/internal/mock"
)

const testTopic = "arn:aws:sns:eu-west-1:123456789012:stack-updates"

func TestPublisher_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("Parameters are submitted as an object", func(t *testing.T) {
		api := mock.NewMockSNSAPI(ctrl)
		publisher := NewPublisher(api, zerolog.Nop())

		api.EXPECT().Publish(gomock.Any(), &sns.PublishInput{
			TopicArn: aws.String(testTopic),
			Message:  aws.String(`{"stackName":"stack1","region":"eu-west-1","params":{"key":"value"}}`),
		}).Return(&sns.PublishOutput{MessageId: aws.String("msg-1")}, nil)

		err := publisher.Publish(context.Background(), testTopic, "stack1", `{ "key": "value" }`, "eu-west-1")

		assert.NoError(t, err)
	})

	t.Run("Transport error is returned unmodified", func(t *testing.T) {
		api := mock.NewMockSNSAPI(ctrl)
		publisher := NewPublisher(api, zerolog.Nop())
		transportErr := errors.New("AuthorizationError: not allowed")

		api.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil, transportErr).Times(1)

		err := publisher.Publish(context.Background(), testTopic, "stack1", `{}`, "eu-west-1")

		assert.Same(t, transportErr, err)
	})

	t.Run("Invalid params are rejected before publishing", func(t *testing.T) {
		api := mock.NewMockSNSAPI(ctrl)
		publisher := NewPublisher(api, zerolog.Nop())

		err := publisher.Publish(context.Background(), testTopic, "stack1", `not json`, "eu-west-1")

		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestNewUpdateMessage(t *testing.T) {
	testCases := []struct {
		name     string
		params   string
		expected string
		err      error
	}{
		{"Nested object", `{"AmiId":"ami-123","Tags":{"team":"ops"},"Count":2}`, `{"stackName":"app1","region":"eu-central-1","params":{"AmiId":"ami-123","Count":2,"Tags":{"team":"ops"}}}`, nil},
		{"Empty params", ``, `{"stackName":"app1","region":"eu-central-1","params":{}}`, nil},
		{"Null params", `null`, ``, ErrInvalidParams},
		{"Array params", `["a"]`, ``, ErrInvalidParams},
		{"String params", `"value"`, ``, ErrInvalidParams},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			message, err := NewUpdateMessage("app1", tc.params, "eu-central-1")

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, message)
		})
	}
}
