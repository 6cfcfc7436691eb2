package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tcrun/internal/infra/kafka"
	"tcrun/internal/infra/report"
)

func (c *cli) newWatchCommand() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print results published to Kafka by other tcrun runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd, map[string]string{
				"brokers": "kafka.brokers",
				"topic":   "kafka.topic",
				"group":   "kafka.group_id",
				"color":   "report.color",
			})
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled() {
				return errors.New("watch needs kafka.brokers and kafka.topic")
			}
			consumer, err := kafka.NewConsumer(kafka.Config{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID,
			})
			if err != nil {
				return err
			}
			defer consumer.Close()

			return c.watch(cmd.Context(), consumer, runID, c.logger(cfg), report.NewTextWriter(c.stdout, report.Options{
				Color: c.useColor(cfg.Report.Color),
			}))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&runID, "run", "", "only show this run and stop when it finishes")
	flags.String("brokers", "", "comma separated Kafka brokers")
	flags.String("topic", "", "Kafka topic the results are published to")
	flags.String("group", "", "Kafka consumer group")
	flags.String("color", "", "colored output: auto, always or never")
	return cmd
}

type eventSource interface {
	Next(ctx context.Context) (kafka.Event, error)
}

// watch prints events until ctx ends or, when runID is set, until that run
// has finished.
func (c *cli) watch(ctx context.Context, events eventSource, runID string, logger *slog.Logger, out *report.TextWriter) error {
	for {
		event, err := events.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, kafka.ErrMalformedMessage):
			logger.Warn("skipping message", "error", err)
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("read results: %w", err)
		}
		if runID != "" && event.RunID != runID {
			continue
		}

		switch {
		case event.Result != nil:
			if err := out.WriteResult(*event.Result); err != nil {
				return err
			}
		case event.Finished():
			if err := out.WriteSummary(event.RunID, *event.Summary, event.Duration); err != nil {
				return err
			}
			if runID != "" {
				return nil
			}
		}
	}
}
