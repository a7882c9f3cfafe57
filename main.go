package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

func main() {
	config, err := LoadConfigFromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		logger := NewLogger(config)
		h, err := NewHandler(context.Background(), config, logrus.NewEntry(logger))
		if err != nil {
			logger.WithError(err).Fatal("failed to create handler")
		}
		lambda.Start(h.HandleLambdaEvent)
		return
	}
	if err := NewRootCommand(config).Execute(); err != nil {
		logrus.WithError(err).Fatal("invocation failed")
	}
}
