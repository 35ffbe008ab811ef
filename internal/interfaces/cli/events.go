package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/dossier-engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dossier-engine/pkg/errors"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the dossier event topics",
	}
	cmd.AddCommand(newEventsTailCmd(), newEventsTopicsCmd())
	return cmd
}

func formatEnvelope(topic string, env *kafka.EventEnvelope) string {
	ref := env.Reference
	if ref == "" {
		ref = env.DossierID
	}
	return fmt.Sprintf("%s  %-22s %-24s %s  tenant=%s",
		env.Timestamp.UTC().Format(time.RFC3339), topic, env.EventType, ref, env.TenantID)
}

func newEventsTailCmd() *cobra.Command {
	var (
		group      string
		topics     []string
		fromLatest bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events as they are published",
		Long: `Tail joins a consumer group on the event topics and prints every envelope
until interrupted.  With --tenant only that tenant's events are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if limit < 0 {
				return errors.InvalidParam("--limit must not be negative")
			}
			if group == "" {
				group = fmt.Sprintf("dossierctl-tail-%d", os.Getpid())
			}

			stream, err := cc.Factory.Events(cc.Config, kafka.ConsumerOptions{
				GroupID:    group,
				Topics:     topics,
				FromLatest: fromLatest,
			}, cc.Logger)
			if err != nil {
				return err
			}
			defer stream.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			var seen atomic.Int64
			out := cmd.OutOrStdout()
			return stream.Run(ctx, func(_ context.Context, topic string, env *kafka.EventEnvelope) error {
				if cc.Tenant != "" && env.TenantID != string(cc.Tenant) {
					return nil
				}
				if cc.OutputFormat == "json" {
					line, err := json.Marshal(env)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(line))
				} else {
					fmt.Fprintln(out, formatEnvelope(topic, env))
				}
				if limit > 0 && seen.Add(1) >= int64(limit) {
					cancel()
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&group, "group", "", "consumer group (default: one per process)")
	f.StringSliceVar(&topics, "topic", nil, "topic to read, repeatable (default: all engine topics)")
	f.BoolVar(&fromLatest, "from-latest", true, "start a new group at the end of the topics")
	f.IntVar(&limit, "limit", 0, "stop after this many events (0: until interrupted)")
	return cmd
}

func newEventsTopicsCmd() *cobra.Command {
	var replication int
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Create the event topics that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			admin, err := cc.Factory.Topics(cc.Config, cc.Logger)
			if err != nil {
				return err
			}
			defer admin.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cc.Timeout)
			defer cancel()
			created, err := admin.EnsureTopics(ctx, replication)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				return PrintResult(cmd, "All topics exist: "+strings.Join(kafka.Topics(), ", "))
			}
			return PrintResult(cmd, "Created topics: "+strings.Join(created, ", "))
		},
	}
	cmd.Flags().IntVar(&replication, "replication", 1, "replication factor of new topics")
	return cmd
}
