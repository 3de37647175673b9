package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/prometheus"
	"github.com/shini4i/deployment-notifier/internal/helpers"
	"github.com/shini4i/deployment-notifier/internal/models"
	"github.com/shini4i/deployment-notifier/internal/parser"
	"github.com/shini4i/deployment-notifier/internal/queue"
)

// DefaultPollInterval is the delay between two polls that did not reach a verdict.
var DefaultPollInterval = 1 * time.Second

const (
	classificationForeign   = "foreign"
	classificationStale     = "stale"
	classificationProgress  = "progress"
	classificationSucceeded = "succeeded"
	classificationFailed    = "failed"
)

var errStillPending = errors.New("stack update is still pending")

// Config describes a single watch.
type Config struct {
	StackName string
	// StartTime is the watch epoch, events before it are stale. Defaults to now.
	StartTime    time.Time
	PollInterval time.Duration
	// MaxAttempts bounds the number of polls. Zero means the watch is bounded only by its context.
	MaxAttempts     uint
	SuccessStatuses []string
	RollbackPrefix  string
	// StackResourceType is the resource type whose success statuses complete the update.
	// Defaults to the CloudFormation stack resource.
	StackResourceType string
	// AnyResourceType accepts a success status from any resource of the stack.
	AnyResourceType bool
}

// Watcher follows the stack events of one stack update until it completes or rolls back.
type Watcher struct {
	source       queue.Source
	metrics      prometheus.MetricsInterface
	logger       zerolog.Logger
	config       Config
	session      models.WatchSession
	retryOptions []retry.Option
}

// NewWatcher creates a watcher for config.StackName reading from source.
func NewWatcher(source queue.Source, config Config, metrics prometheus.MetricsInterface, logger zerolog.Logger) (*Watcher, error) {
	if source == nil {
		return nil, errors.New("queue source cannot be nil")
	}
	if metrics == nil {
		return nil, errors.New("metrics cannot be nil")
	}
	if config.StackName == "" {
		return nil, errors.New("trying to create watcher without stack name")
	}

	if config.StartTime.IsZero() {
		config.StartTime = time.Now()
	}
	config.StartTime = config.StartTime.UTC()
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if len(config.SuccessStatuses) == 0 {
		config.SuccessStatuses = models.DefaultSuccessStatuses
	}
	if config.RollbackPrefix == "" {
		config.RollbackPrefix = models.StatusRollbackPrefix
	}
	if config.StackResourceType == "" {
		config.StackResourceType = models.StackResourceType
	}

	session := models.WatchSession{
		Id:              uuid.NewString(),
		TargetStackName: config.StackName,
		StartTime:       config.StartTime,
		Outcome:         models.OutcomePending,
	}

	watcher := &Watcher{
		source:  source,
		metrics: metrics,
		logger:  logger.With().Str("id", session.Id).Str("stack", config.StackName).Logger(),
		config:  config,
		session: session,
	}

	watcher.retryOptions = []retry.Option{
		retry.DelayType(retry.FixedDelay),
		retry.Delay(config.PollInterval),
		retry.Attempts(config.MaxAttempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(_ uint, err error) {
			if !errors.Is(err, errStillPending) {
				watcher.logger.Warn().Msgf("Poll failed, retrying: %s", err)
			}
		}),
	}

	return watcher, nil
}

// Session returns a snapshot of the watch state.
func (watcher *Watcher) Session() models.WatchSession {
	return watcher.session
}

// Wait polls until the stack update succeeds, rolls back, or ctx is done.
// The returned outcome is never pending. The error is only set when polling cannot continue.
func (watcher *Watcher) Wait(ctx context.Context) (models.Result, error) {
	watcher.metrics.AddInProgressWatch()
	defer watcher.metrics.RemoveInProgressWatch()

	if err := ctx.Err(); err != nil {
		watcher.logger.Warn().Msgf("Watch aborted before the first poll: %s", err)
		return watcher.abort(), nil
	}

	watcher.logger.Info().Msgf("Waiting for stack update (events after %s)", watcher.session.StartTime.Format(time.RFC3339Nano))

	var result models.Result
	options := append([]retry.Option{retry.Context(ctx)}, watcher.retryOptions...)

	err := retry.Do(func() error {
		stepResult, err := watcher.Step(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueGone) {
				return retry.Unrecoverable(err)
			}
			return err
		}
		if !stepResult.Outcome.IsTerminal() {
			return errStillPending
		}
		result = stepResult
		return nil
	}, options...)

	switch {
	case err == nil:
	case errors.Is(err, queue.ErrQueueGone):
		watcher.logger.Error().Msgf("Aborting watch: %s", err)
		return watcher.abort(), err
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			watcher.logger.Warn().Msgf("Watch aborted: %s", ctxErr)
		} else {
			watcher.logger.Warn().Msgf("Watch aborted after %d polls: %s", watcher.config.MaxAttempts, err)
		}
		return watcher.abort(), nil
	}

	watcher.metrics.AddWatchOutcome(string(result.Outcome))
	return result, nil
}

// Step runs a single poll iteration. It returns a pending result unless an event in the
// fetched batch decided the update. Messages after a deciding event are left for later.
func (watcher *Watcher) Step(ctx context.Context) (models.Result, error) {
	messages, err := watcher.source.FetchBatch(ctx)
	if err != nil {
		return watcher.pending(), fmt.Errorf("failed to fetch messages: %w", err)
	}

	for _, message := range messages {
		event, err := parser.Parse(message.Body)
		if err != nil {
			watcher.metrics.AddParseFailure()
			watcher.logger.Warn().Str("message_id", message.Id).Msgf("Couldn't parse message, leaving it on the queue: %s", err)
			continue
		}

		if event.StackName != watcher.session.TargetStackName {
			watcher.metrics.AddProcessedMessage(classificationForeign)
			watcher.delete(ctx, message)
			continue
		}

		watcher.delete(ctx, message)

		if event.Timestamp.Before(watcher.session.StartTime) {
			watcher.metrics.AddProcessedMessage(classificationStale)
			watcher.logger.Debug().Str("message_id", message.Id).Msgf("Discarding stale event %s from %s", event.ResourceStatus, event.Timestamp.Format(time.RFC3339Nano))
			continue
		}

		watcher.logger.Info().Msgf("CloudFormation stack is in state %s (%s)", event.ResourceStatus, event.ResourceType)

		switch {
		case watcher.isSuccess(event):
			watcher.metrics.AddProcessedMessage(classificationSucceeded)
			return watcher.finish(models.OutcomeSucceeded, event), nil
		case strings.HasPrefix(event.ResourceStatus, watcher.config.RollbackPrefix):
			watcher.metrics.AddProcessedMessage(classificationFailed)
			return watcher.finish(models.OutcomeFailed, event), nil
		default:
			watcher.metrics.AddProcessedMessage(classificationProgress)
		}
	}

	return watcher.pending(), nil
}

func (watcher *Watcher) isSuccess(event models.StackEvent) bool {
	if !watcher.config.AnyResourceType && !event.IsStackResource(watcher.config.StackResourceType) {
		return false
	}
	return helpers.Contains(watcher.config.SuccessStatuses, event.ResourceStatus)
}

// delete acknowledges a consumed message. A failed delete only means the message may be seen again.
func (watcher *Watcher) delete(ctx context.Context, message queue.RawMessage) {
	if err := watcher.source.Delete(ctx, message); err != nil {
		watcher.metrics.AddDeleteFailure()
		watcher.logger.Warn().Str("message_id", message.Id).Msgf("Failed to delete message: %s", err)
	}
}

func (watcher *Watcher) finish(outcome models.Outcome, event models.StackEvent) models.Result {
	watcher.session.Outcome = outcome
	if outcome == models.OutcomeFailed {
		watcher.session.Reason = event.ResourceStatusReason
		watcher.logger.Info().Msgf("Stack update failed: %s", event.ResourceStatusReason)
	} else {
		watcher.logger.Info().Msg("Stack update completed.")
	}

	return models.Result{
		SessionId:      watcher.session.Id,
		Outcome:        outcome,
		StackName:      event.StackName,
		ResourceStatus: event.ResourceStatus,
		Reason:         event.ResourceStatusReason,
		Timestamp:      event.Timestamp,
	}
}

func (watcher *Watcher) pending() models.Result {
	return models.Result{
		SessionId: watcher.session.Id,
		Outcome:   models.OutcomePending,
		StackName: watcher.session.TargetStackName,
	}
}

func (watcher *Watcher) abort() models.Result {
	watcher.metrics.AddWatchOutcome(string(models.OutcomeAborted))
	return models.Result{
		SessionId: watcher.session.Id,
		Outcome:   models.OutcomeAborted,
		StackName: watcher.session.TargetStackName,
	}
}
