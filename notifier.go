package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/sirupsen/logrus"
)

// Notifier receives every message produced by the handler.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type CloudWatchLogsAPI interface {
	PutLogEventsWithContext(aws.Context, *cloudwatchlogs.PutLogEventsInput, ...request.Option) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroupWithContext(aws.Context, *cloudwatchlogs.CreateLogGroupInput, ...request.Option) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStreamWithContext(aws.Context, *cloudwatchlogs.CreateLogStreamInput, ...request.Option) (*cloudwatchlogs.CreateLogStreamOutput, error)
	DescribeLogGroupsWithContext(aws.Context, *cloudwatchlogs.DescribeLogGroupsInput, ...request.Option) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DescribeLogStreamsWithContext(aws.Context, *cloudwatchlogs.DescribeLogStreamsInput, ...request.Option) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
}

type LogConfig struct {
	LogGroupName  string
	LogStreamName string
}

// CloudWatchNotifier mirrors messages to a single CloudWatch Logs stream.
type CloudWatchNotifier struct {
	client    CloudWatchLogsAPI
	logConfig LogConfig
	now       func() time.Time
}

func NewCloudWatchNotifier(ctx context.Context, client CloudWatchLogsAPI, logConfig LogConfig, logger *logrus.Entry) (*CloudWatchNotifier, error) {
	if err := EnsureLogGroupAndLogStreamExists(ctx, client, logConfig, logger); err != nil {
		return nil, fmt.Errorf("error creating log group and stream: %w", err)
	}
	return &CloudWatchNotifier{client: client, logConfig: logConfig, now: time.Now}, nil
}

func (n *CloudWatchNotifier) Notify(ctx context.Context, message string) error {
	_, err := n.client.PutLogEventsWithContext(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogEvents: []*cloudwatchlogs.InputLogEvent{{
			Message:   aws.String(message),
			Timestamp: aws.Int64(n.now().UnixMilli()),
		}},
		LogGroupName:  aws.String(n.logConfig.LogGroupName),
		LogStreamName: aws.String(n.logConfig.LogStreamName),
	})
	if err != nil {
		return fmt.Errorf("failed to put log event to %s/%s: %w", n.logConfig.LogGroupName, n.logConfig.LogStreamName, err)
	}

	return nil
}

func EnsureLogGroupAndLogStreamExists(ctx context.Context, client CloudWatchLogsAPI, logConfig LogConfig, logger *logrus.Entry) error {
	err := ensureLogGroupExists(ctx, client, logConfig.LogGroupName, logger)
	if err != nil {
		return err
	}
	return ensureLogStreamExists(ctx, client, logConfig.LogGroupName, logConfig.LogStreamName, logger)
}

func ensureLogGroupExists(ctx context.Context, client CloudWatchLogsAPI, name string, logger *logrus.Entry) error {
	resp, err := client.DescribeLogGroupsWithContext(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return err
	}
	for _, logGroup := range resp.LogGroups {
		if aws.StringValue(logGroup.LogGroupName) == name {
			return nil
		}
	}
	logger.WithField("log_group", name).Info("creating log group")
	_, err = client.CreateLogGroupWithContext(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	})

	return ignoreAlreadyExists(err)
}

func ensureLogStreamExists(ctx context.Context, client CloudWatchLogsAPI, logGroupName, logStreamName string, logger *logrus.Entry) error {
	resp, err := client.DescribeLogStreamsWithContext(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(logGroupName),
		LogStreamNamePrefix: aws.String(logStreamName),
	})
	if err != nil {
		return err
	}
	for _, logStream := range resp.LogStreams {
		if aws.StringValue(logStream.LogStreamName) == logStreamName {
			return nil
		}
	}
	logger.WithFields(logrus.Fields{"log_group": logGroupName, "log_stream": logStreamName}).Info("creating log stream")
	_, err = client.CreateLogStreamWithContext(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroupName),
		LogStreamName: aws.String(logStreamName),
	})

	return ignoreAlreadyExists(err)
}

// ignoreAlreadyExists swallows the error raised when a concurrent cold start
// created the resource between describe and create.
func ignoreAlreadyExists(err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == cloudwatchlogs.ErrCodeResourceAlreadyExistsException {
		return nil
	}
	return err
}
