package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shini4i/deployment-notifier/cmd/deployment-notifier/config"
	"github.com/shini4i/deployment-notifier/internal/publisher"
)

func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Announce a stack update",
		Long:  "Publish the update request for a stack to the SNS topic the deployment pipeline listens on",
		Example: `  deployment-notifier publish --topic arn:aws:sns:eu-west-1:123456789012:stack-updates --stack app1 --params '{"AmiId":"ami-123"}'`,
		RunE: runPublish,
	}

	cmd.Flags().String("topic", "", "SNS topic ARN (SNS_TOPIC_ARN)")
	cmd.Flags().String("stack", "", "stack name (STACK_NAME)")
	cmd.Flags().String("params", "", "stack parameters as a JSON object (STACK_PARAMS)")
	cmd.Flags().String("stack-region", "", "region of the stack announced in the request (STACK_REGION)")
	cmd.Flags().String("region", "", "AWS region of the topic (AWS_REGION)")

	return cmd
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewPublishConfig()
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("couldn't initialize config: %w", err)}
	}
	applyPublishFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("invalid configuration: %w", err)}
	}

	if _, err := publisher.NewUpdateMessage(cfg.StackName, cfg.StackParams, cfg.GetStackRegion()); err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	initLogs(cfg.Common.LogLevel, cfg.Common.LogFormat)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Common.Region))
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("couldn't load AWS configuration: %w", err)}
	}

	updatePublisher := publisher.NewPublisher(sns.NewFromConfig(awsCfg), log.Logger)
	if err := updatePublisher.Publish(ctx, cfg.TopicArn, cfg.StackName, cfg.StackParams, cfg.GetStackRegion()); err != nil {
		return &exitError{code: exitFailed, err: fmt.Errorf("couldn't publish update request: %w", err)}
	}

	return nil
}

func applyPublishFlags(cmd *cobra.Command, cfg *config.PublishConfig) {
	flags := cmd.Flags()
	if flags.Changed("topic") {
		cfg.TopicArn, _ = flags.GetString("topic")
	}
	if flags.Changed("stack") {
		cfg.StackName, _ = flags.GetString("stack")
	}
	if flags.Changed("params") {
		cfg.StackParams, _ = flags.GetString("params")
	}
	if flags.Changed("stack-region") {
		cfg.StackRegion, _ = flags.GetString("stack-region")
	}
	if flags.Changed("region") {
		cfg.Common.Region, _ = flags.GetString("region")
	}
}
