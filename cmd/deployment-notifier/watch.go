package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/config"
	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/prometheus"
	"github.com/shini4i/deployment-notifier/internal/helpers"
	"github.com/shini4i/deployment-notifier/internal/models"
	"github.com/shini4i/deployment-notifier/internal/notifications"
	"github.com/shini4i/deployment-notifier/internal/queue"
	"github.com/shini4i/deployment-notifier/internal/watcher"
)

const pushgatewayJob = "deployment_notifier"

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait for the outcome of a stack update",
		Long: `Poll the SQS queue receiving CloudFormation stack events until the update of the
stack completes (exit 0), rolls back (exit 1) or the watch is aborted (exit 2).
Configuration and connection errors exit with 3.`,
		Example: `  deployment-notifier watch --queue cfn-events --queue-owner 123456789012 --stack app1 --timeout 20m`,
		RunE:    runWatch,
	}

	cmd.Flags().String("queue", "", "SQS queue name or URL (SQS_QUEUE)")
	cmd.Flags().String("queue-owner", "", "AWS account id owning the queue (SQS_QUEUE_OWNER)")
	cmd.Flags().String("stack", "", "stack name (STACK_NAME)")
	cmd.Flags().String("start-time", "", "ignore events before this time, RFC3339 or unix seconds (default now)")
	cmd.Flags().Duration("timeout", 0, "give up after this long, 0 waits until interrupted (WATCH_TIMEOUT)")
	cmd.Flags().Duration("poll-interval", 0, "delay between polls (POLL_INTERVAL)")
	cmd.Flags().Uint("max-attempts", 0, "give up after this many polls, 0 polls until the timeout (WATCH_MAX_ATTEMPTS)")
	cmd.Flags().String("region", "", "AWS region of the queue (AWS_REGION)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewWatchConfig()
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("couldn't initialize config: %w", err)}
	}
	applyWatchFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("invalid configuration: %w", err)}
	}

	initLogs(cfg.Common.LogLevel, cfg.Common.LogFormat)

	startTimeFlag, _ := cmd.Flags().GetString("start-time")
	startTime, err := helpers.ParseTime(startTimeFlag)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Common.Region))
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("couldn't load AWS configuration: %w", err)}
	}

	source, err := queue.NewSQSSource(ctx, sqs.NewFromConfig(awsCfg), queue.SQSConfig{
		Queue:             cfg.Queue,
		OwnerAccountId:    cfg.QueueOwner,
		MaxMessages:       cfg.MaxMessages,
		WaitTimeSeconds:   cfg.WaitTimeSeconds,
		VisibilityTimeout: cfg.VisibilityTimeout,
	}, log.Logger)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	metrics := prometheus.NewMetrics(prom.NewRegistry())

	stackWatcher, err := watcher.NewWatcher(source, newWatcherConfig(cfg, startTime), metrics, log.Logger)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	notifier, err := newNotifier(&cfg.Webhook)
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("couldn't initialize the webhook: %w", err)}
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result, waitErr := stackWatcher.Wait(waitCtx)

	// the watch context may be done already, reporting gets its own deadline
	reportCtx, cancelReport := context.WithTimeout(context.Background(), time.Minute)
	defer cancelReport()

	if err := notifier.Send(reportCtx, result); err != nil {
		log.Error().Str("id", result.SessionId).Msgf("Failed to dispatch notification. Error: %s", err.Error())
	}

	if cfg.Common.PushgatewayUrl != "" {
		if err := metrics.Push(cfg.Common.PushgatewayUrl, pushgatewayJob, cfg.StackName); err != nil {
			log.Warn().Msgf("Couldn't push metrics: %s", err)
		}
	}

	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
		log.Warn().Msgf("Couldn't print result: %s", err)
	}

	if waitErr != nil {
		return &exitError{code: exitFatal, err: waitErr}
	}

	return outcomeError(result)
}

func applyWatchFlags(cmd *cobra.Command, cfg *config.WatchConfig) {
	flags := cmd.Flags()
	if flags.Changed("queue") {
		cfg.Queue, _ = flags.GetString("queue")
	}
	if flags.Changed("queue-owner") {
		cfg.QueueOwner, _ = flags.GetString("queue-owner")
	}
	if flags.Changed("stack") {
		cfg.StackName, _ = flags.GetString("stack")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval, _ = flags.GetDuration("poll-interval")
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts, _ = flags.GetUint("max-attempts")
	}
	if flags.Changed("region") {
		cfg.Common.Region, _ = flags.GetString("region")
	}
}

func newWatcherConfig(cfg *config.WatchConfig, startTime time.Time) watcher.Config {
	return watcher.Config{
		StackName:         cfg.StackName,
		StartTime:         startTime,
		PollInterval:      cfg.PollInterval,
		MaxAttempts:       cfg.MaxAttempts,
		SuccessStatuses:   cfg.SuccessStatuses,
		RollbackPrefix:    cfg.RollbackPrefix,
		StackResourceType: cfg.StackResourceType,
		AnyResourceType:   cfg.AnyResourceType,
	}
}

func newNotifier(webhookConfig *config.WebhookConfig) (*notifications.Notifier, error) {
	if webhookConfig == nil || !webhookConfig.Enabled {
		return nil, nil
	}

	httpClient := &http.Client{
		Timeout: 15 * time.Second,
	}

	webhookStrategy, err := notifications.NewWebhookStrategy(webhookConfig, httpClient)
	if err != nil {
		return nil, err
	}

	return notifications.NewNotifier(webhookStrategy), nil
}

// outcomeError maps a watch result to the command exit status.
func outcomeError(result models.Result) error {
	switch result.Outcome {
	case models.OutcomeSucceeded:
		return nil
	case models.OutcomeFailed:
		return &exitError{code: exitFailed, err: fmt.Errorf("stack %s update failed: %s", result.StackName, result.Reason)}
	case models.OutcomeAborted:
		return &exitError{code: exitAborted, err: fmt.Errorf("gave up waiting for stack %s", result.StackName)}
	default:
		return &exitError{code: exitFatal, err: errors.New("watch ended without a verdict")}
	}
}
