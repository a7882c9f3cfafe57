package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// handlerFactory builds the handler used by the command; tests replace it.
type handlerFactory func(ctx context.Context, config Config, logger *logrus.Entry) (EventHandler, error)

// EventHandler is the part of *Handler the command drives.
type EventHandler interface {
	HandleEventFile(ctx context.Context, path string) (Result, error)
	HandleS3URL(ctx context.Context, url string) ([]Result, error)
}

func NewRootCommand(config Config) *cobra.Command {
	return newRootCommand(config, func(ctx context.Context, config Config, logger *logrus.Entry) (EventHandler, error) {
		h, err := NewHandler(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		return h, nil
	})
}

func newRootCommand(config Config, newHandler handlerFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline-orchestrator <s3://bucket/prefix | event.json>",
		Short: "Replay S3 object notifications through the orchestrator handler",
		Long: `Replay S3 object notifications through the orchestrator handler.

With an s3:// URL every object under the prefix is handled as its own
notification. Any other argument is read as an event JSON file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().IntVar(&config.Concurrency, "concurrency", config.Concurrency, "max number of objects handled at once")
	cmd.Flags().StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level, one of info, debug or trace")
	cmd.Flags().StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format, text or json")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(); err != nil {
			return err
		}
		logger := NewLogger(config)
		logger.SetOutput(cmd.ErrOrStderr())
		entry := logrus.NewEntry(logger)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		h, err := newHandler(ctx, config, entry)
		if err != nil {
			return err
		}

		var out any
		if strings.HasPrefix(args[0], "s3://") {
			out, err = h.HandleS3URL(ctx, args[0])
		} else {
			out, err = h.HandleEventFile(ctx, args[0])
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
