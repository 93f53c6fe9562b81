// Package gcp connects the monitor to Google Cloud: alerts are published to
// Pub/Sub and snapshots are stored in Firestore.
package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
)

// Client wraps the GCP service clients
type Client struct {
	ProjectID       string
	FirestoreClient *firestore.Client
	PubSubClient    *pubsub.Client
}

// NewClient creates the Firestore and Pub/Sub clients. opts are passed to
// both, which lets callers point them at emulators.
func NewClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "gcp project id is required")
	}

	firestoreClient, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("failed to create Firestore client: %w", err), errors.ErrStoreUnavailable)
	}

	pubsubClient, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		firestoreClient.Close()
		return nil, errors.Wrap(fmt.Errorf("failed to create Pub/Sub client: %w", err), errors.ErrServiceUnavailable)
	}

	return &Client{
		ProjectID:       projectID,
		FirestoreClient: firestoreClient,
		PubSubClient:    pubsubClient,
	}, nil
}

// AlertPublisher returns a notifier publishing to topic
func (c *Client) AlertPublisher(topic string, opts ...PublisherOption) *AlertPublisher {
	return NewAlertPublisher(c.PubSubClient, topic, opts...)
}

// SnapshotStore returns a store writing to collection
func (c *Client) SnapshotStore(collection string) *SnapshotStore {
	return NewSnapshotStore(c.FirestoreClient, collection)
}

// Close closes all GCP clients
func (c *Client) Close() error {
	var errs []error

	if err := c.FirestoreClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close Firestore client: %w", err))
	}

	if err := c.PubSubClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close Pub/Sub client: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing clients: %v", errs)
	}

	return nil
}
