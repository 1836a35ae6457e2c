package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/spf13/cobra"

	"github.com/memorial-heritage/api/internal/platform/jobs"
)

const publishTimeout = 30 * time.Second

// publisher sends a refresh notification and returns the server-assigned message id.
type publisher func(ctx context.Context, projectID, topicID string, msg jobs.RefreshMessage) (string, error)

func newRefreshCmd(publish publisher) *cobra.Command {
	var projectID, topicID string

	cmd := &cobra.Command{
		Use:   "refresh <collection>... | refresh '*'",
		Short: "Publish a refresh notification for cached collections",
		Long: `Publish a message on the archive content topic. Every API instance subscribed to it
force-refreshes the named collections. Use '*' to refresh all of them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectID) == "" || strings.TrimSpace(topicID) == "" {
				return errors.New("--project and --topic are required")
			}
			msg, err := jobs.NewRefreshMessage(args...)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
			defer cancel()

			id, err := publish(ctx, projectID, topicID, msg)
			if err != nil {
				return fmt.Errorf("publishing refresh: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published refresh for %s (message %s).\n", strings.Join(msg.Collections, ", "), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", firstEnv("ARCHIVE_PUBSUB_PROJECT_ID", "ARCHIVE_FIREBASE_PROJECT_ID"), "Google Cloud project owning the topic")
	cmd.Flags().StringVar(&topicID, "topic", os.Getenv("ARCHIVE_PUBSUB_REFRESH_TOPIC"), "Pub/Sub topic the API subscribes to")
	return cmd
}

// defaultPublisher honours PUBSUB_EMULATOR_HOST through the Pub/Sub client.
func defaultPublisher(ctx context.Context, projectID, topicID string, msg jobs.RefreshMessage) (string, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return "", err
	}
	defer client.Close()

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	topic := client.Topic(topicID)
	defer topic.Stop()
	return topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
