package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/config"
	"github.com/shini4i/deployment-notifier/internal/models"
	"github.com/shini4i/deployment-notifier/internal/publisher"
)

func executeCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	return rootCmd.Execute()
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr), "expected exitError, got %v", err)
	return exitErr.code
}

func TestOutcomeError(t *testing.T) {
	assert.NoError(t, outcomeError(models.Result{Outcome: models.OutcomeSucceeded}))

	err := outcomeError(models.Result{Outcome: models.OutcomeFailed, StackName: "app1", Reason: "Resource creation cancelled"})
	assert.Equal(t, exitFailed, exitCode(t, err))
	assert.EqualError(t, err, "stack app1 update failed: Resource creation cancelled")

	assert.Equal(t, exitAborted, exitCode(t, outcomeError(models.Result{Outcome: models.OutcomeAborted})))
	assert.Equal(t, exitFatal, exitCode(t, outcomeError(models.Result{Outcome: models.OutcomePending})))
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := &exitError{code: exitFatal, err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, "exit status 2", (&exitError{code: exitAborted}).Error())
}

func TestWatchCommand_InvalidConfig(t *testing.T) {
	t.Setenv("SQS_QUEUE", "")
	t.Setenv("STACK_NAME", "")

	err := executeCommand(t, "watch")
	assert.Equal(t, exitFatal, exitCode(t, err))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestWatchCommand_InvalidStartTime(t *testing.T) {
	t.Setenv("SQS_QUEUE", "cfn-events")
	t.Setenv("STACK_NAME", "app1")

	err := executeCommand(t, "watch", "--start-time", "yesterday")
	assert.Equal(t, exitFatal, exitCode(t, err))
	assert.ErrorContains(t, err, "unsupported time format")
}

func TestPublishCommand_InvalidConfig(t *testing.T) {
	t.Setenv("SNS_TOPIC_ARN", "")
	t.Setenv("STACK_NAME", "app1")

	err := executeCommand(t, "publish")
	assert.Equal(t, exitFatal, exitCode(t, err))
}

func TestPublishCommand_InvalidParams(t *testing.T) {
	t.Setenv("SNS_TOPIC_ARN", "arn:aws:sns:eu-west-1:123456789012:stack-updates")

	err := executeCommand(t, "publish", "--stack", "app1", "--params", "[1,2]")
	assert.Equal(t, exitFatal, exitCode(t, err))
	assert.ErrorIs(t, err, publisher.ErrInvalidParams)
}

func TestApplyWatchFlags(t *testing.T) {
	cmd := newWatchCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--queue", "https://sqs.eu-west-1.amazonaws.com/123456789012/cfn-events", "--stack", "app2", "--timeout", "5m", "--max-attempts", "40"}))

	cfg := &config.WatchConfig{Queue: "cfn-events", QueueOwner: "123456789012", StackName: "app1", Timeout: 30 * time.Minute}
	applyWatchFlags(cmd, cfg)

	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/123456789012/cfn-events", cfg.Queue)
	assert.Equal(t, "123456789012", cfg.QueueOwner)
	assert.Equal(t, "app2", cfg.StackName)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, uint(40), cfg.MaxAttempts)
}

func TestApplyPublishFlags(t *testing.T) {
	cmd := newPublishCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--params", `{"key":"value"}`, "--stack-region", "us-east-1"}))

	cfg := &config.PublishConfig{TopicArn: "arn", StackName: "app1", StackParams: "{}"}
	applyPublishFlags(cmd, cfg)

	assert.Equal(t, "arn", cfg.TopicArn)
	assert.Equal(t, `{"key":"value"}`, cfg.StackParams)
	assert.Equal(t, "us-east-1", cfg.GetStackRegion())
}

func TestNewWatcherConfig(t *testing.T) {
	startTime := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cfg := &config.WatchConfig{
		StackName:         "app1",
		PollInterval:      2 * time.Second,
		MaxAttempts:       60,
		SuccessStatuses:   []string{models.StatusUpdateComplete},
		RollbackPrefix:    models.StatusRollbackPrefix,
		StackResourceType: models.StackResourceType,
		AnyResourceType:   true,
	}

	watcherConfig := newWatcherConfig(cfg, startTime)

	assert.Equal(t, "app1", watcherConfig.StackName)
	assert.Equal(t, startTime, watcherConfig.StartTime)
	assert.Equal(t, 2*time.Second, watcherConfig.PollInterval)
	assert.Equal(t, []string{models.StatusUpdateComplete}, watcherConfig.SuccessStatuses)
	assert.True(t, watcherConfig.AnyResourceType)
	assert.Equal(t, uint(60), watcherConfig.MaxAttempts)
}

func TestNewNotifier(t *testing.T) {
	notifier, err := newNotifier(&config.WebhookConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, notifier)

	notifier, err = newNotifier(&config.WebhookConfig{Enabled: true, Url: "http://localhost:8080", Format: `{"outcome":"{{.Outcome}}"}`})
	assert.NoError(t, err)
	assert.NotNil(t, notifier)

	_, err = newNotifier(&config.WebhookConfig{Enabled: true, Url: "http://localhost:8080"})
	assert.Error(t, err)
}

func TestInitLogs(t *testing.T) {
	assert.NotPanics(t, func() { initLogs("debug", config.LogFormatText) })
	assert.NotPanics(t, func() { initLogs("not-a-level", "json") })
}
