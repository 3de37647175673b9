package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/config"
)

const (
	exitSucceeded = 0
	exitFailed    = 1
	exitAborted   = 2
	exitFatal     = 3
)

var version = "dev"

// exitError carries the process exit code of a finished command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deployment-notifier",
		Short: "Trigger CloudFormation stack updates and wait for their outcome",
		Long: `deployment-notifier announces a stack update on an SNS topic and follows the
stack events CloudFormation publishes to an SQS queue until the update completes,
rolls back, or the watch times out.

Configuration is read from environment variables, flags take precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newPublishCommand(), newWatchCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil {
				log.Error().Msg(exitErr.Error())
			}
			os.Exit(exitErr.code)
		}
		log.Error().Msg(err.Error())
		os.Exit(exitFatal)
	}
}

// initLogs initializes the logging configuration based on the provided log level and format.
// If the log level string is invalid, it falls back to the default InfoLevel.
func initLogs(logLevel string, logFormat string) {
	if logFormat == config.LogFormatText {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if lvl, err := zerolog.ParseLevel(logLevel); err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("Couldn't parse log level. Got the following error: %s", err)
	} else {
		zerolog.SetGlobalLevel(lvl)
		log.Debug().Msgf("Configured log level: %s", lvl)
	}
}
