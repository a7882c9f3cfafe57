package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"
)

const messageFormat = "Hello user, orchestrator has been invoked with:  S3://%s/%s!"

type S3Api interface {
	ListObjectsV2WithContext(aws.Context, *s3.ListObjectsV2Input, ...request.Option) (*s3.ListObjectsV2Output, error)
}

type Handler struct {
	notifier    Notifier
	s3Client    S3Api
	logger      *logrus.Entry
	concurrency int
}

func NewHandler(ctx context.Context, config Config, logger *logrus.Entry) (*Handler, error) {
	sess := session.Must(session.NewSession())
	h := &Handler{
		s3Client:    s3.New(sess),
		logger:      logger,
		concurrency: config.Concurrency,
	}
	if config.NotifierEnabled() {
		notifier, err := NewCloudWatchNotifier(ctx, cloudwatchlogs.New(sess), LogConfig{
			LogGroupName:  config.LogGroupName,
			LogStreamName: config.LogStreamName,
		}, logger.WithField("component", "notifier"))
		if err != nil {
			return nil, err
		}
		h.notifier = notifier
	}
	return h, nil
}

// NewMessage formats the notification text for one object.
func NewMessage(obj S3ObjectInfo) string {
	return fmt.Sprintf(messageFormat, obj.Bucket, obj.Key)
}

// HandleLambdaEvent logs the raw event, builds the message for its first
// record, logs it and returns it. Events without a first record carrying a
// bucket name and object key fail with a *MalformedEventError.
func (h *Handler) HandleLambdaEvent(ctx context.Context, event json.RawMessage) (Result, error) {
	logger := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.WithField("request_id", lc.AwsRequestID)
	}
	logger.Infof("event: %s", event)

	obj, err := DecodeFirstObject(event)
	if err != nil {
		return Result{}, err
	}

	message := NewMessage(obj)
	logger.WithFields(logrus.Fields{"bucket": obj.Bucket, "key": obj.Key}).Info(message)

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, message); err != nil {
			return Result{}, fmt.Errorf("error publishing message for s3://%s/%s: %w", obj.Bucket, obj.Key, err)
		}
	}

	return Result{Message: message}, nil
}

// HandleEventFile replays an event stored as JSON on disk.
func (h *Handler) HandleEventFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read event file: %w", err)
	}
	return h.HandleLambdaEvent(ctx, data)
}

// HandleS3URL invokes the handler once per object under the URL's prefix,
// as if each object had produced its own notification. Results keep the
// listing order.
func (h *Handler) HandleS3URL(ctx context.Context, url string) ([]Result, error) {
	bucket, prefix, err := ParseS3URL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse S3 URL: %w", err)
	}

	var s3Objects []S3ObjectInfo
	var continuationToken *string
	for {
		resp, err := h.s3Client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, item := range resp.Contents {
			s3Objects = append(s3Objects, S3ObjectInfo{
				Bucket: bucket,
				Key:    aws.StringValue(item.Key),
			})
		}

		if !aws.BoolValue(resp.IsTruncated) {
			break
		}
		continuationToken = resp.NextContinuationToken
	}
	h.logger.WithFields(logrus.Fields{"bucket": bucket, "prefix": prefix}).Debugf("listed %d objects", len(s3Objects))

	return h.processS3Objects(ctx, s3Objects)
}

// processS3Objects stops starting new objects once one fails and returns the
// failure of the earliest object in listing order.
func (h *Handler) processS3Objects(parent context.Context, s3Objects []S3ObjectInfo) ([]Result, error) {
	concurrency := h.concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make([]Result, len(s3Objects))
	var (
		mu       sync.Mutex
		firstErr error
		errIndex = len(s3Objects)
	)
	fail := func(i int, err error) {
		mu.Lock()
		if i < errIndex {
			errIndex, firstErr = i, err
		}
		mu.Unlock()
		cancel()
	}

	var wg sync.WaitGroup
	concurrent := make(chan struct{}, concurrency) // limit concurrent invocations
	for i, s3obj := range s3Objects {
		select {
		case concurrent <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, s3obj S3ObjectInfo) {
			defer func() { wg.Done(); <-concurrent }()
			event, err := json.Marshal(NewS3ObjectCreatedEvent(s3obj))
			if err != nil {
				fail(i, fmt.Errorf("error encoding event for s3://%s/%s: %w", s3obj.Bucket, s3obj.Key, err))
				return
			}
			result, err := h.HandleLambdaEvent(ctx, event)
			if err != nil {
				fail(i, fmt.Errorf("error handling s3://%s/%s: %w", s3obj.Bucket, s3obj.Key, err))
				return
			}
			results[i] = result
		}(i, s3obj)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
