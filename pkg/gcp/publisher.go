package gcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spawn-mcp/tripsynth/pkg/alerting"
	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/retry"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

// AlertPublisher is an alerting.Notifier that publishes every created alert
// to a Pub/Sub topic. The topic is created on first use if missing.
type AlertPublisher struct {
	client    *pubsub.Client
	topicName string
	retry     retry.Config
	logger    telemetry.Logger

	mu    sync.Mutex
	topic *pubsub.Topic
}

// PublisherOption configures an AlertPublisher
type PublisherOption func(*AlertPublisher)

// WithPublishRetry overrides the retry policy for a single publish
func WithPublishRetry(cfg retry.Config) PublisherOption {
	return func(p *AlertPublisher) { p.retry = cfg }
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(l telemetry.Logger) PublisherOption {
	return func(p *AlertPublisher) { p.logger = l }
}

// NewAlertPublisher builds a publisher for topic
func NewAlertPublisher(client *pubsub.Client, topic string, opts ...PublisherOption) *AlertPublisher {
	p := &AlertPublisher{
		client:    client,
		topicName: topic,
		retry:     retry.DefaultConfigs.Standard,
		logger:    telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Notify publishes a. Failures are returned as ErrPublishFailed.
func (p *AlertPublisher) Notify(ctx context.Context, a alerting.Alert) error {
	data, err := EncodeAlert(a)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternalError)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"alertId":  a.ID,
			"kind":     string(a.Kind),
			"severity": string(a.Severity),
			"subject":  a.Subject,
		},
	}

	err = retry.Do(ctx, func(ctx context.Context) error {
		topic, err := p.ensureTopic(ctx)
		if err != nil {
			return err
		}
		if _, err := topic.Publish(ctx, msg).Get(ctx); err != nil {
			return errors.Wrap(fmt.Errorf("failed to publish alert %s: %w", a.ID, err), errors.ErrPublishFailed)
		}
		return nil
	}, p.retry)
	if err != nil {
		p.logger.Error(ctx, "alert publish failed", "alert", a.ID, "topic", p.topicName, "err", err)
		return errors.Wrap(err, errors.ErrPublishFailed)
	}
	p.logger.Debug(ctx, "alert published", "alert", a.ID, "topic", p.topicName)
	return nil
}

// Stop flushes pending messages and releases the topic
func (p *AlertPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
		p.topic = nil
	}
}

func (p *AlertPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}

	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("failed to check topic existence: %w", err), errors.ErrPublishFailed)
	}
	if !exists {
		topic, err = p.client.CreateTopic(ctx, p.topicName)
		if err != nil {
			return nil, errors.Wrap(fmt.Errorf("failed to create topic: %w", err), errors.ErrPublishFailed)
		}
		p.logger.Info(ctx, "created alert topic", "topic", p.topicName)
	}
	p.topic = topic
	return topic, nil
}

// EncodeAlert renders a as canonical protobuf JSON
func EncodeAlert(a alerting.Alert) ([]byte, error) {
	recs := make([]any, len(a.Recommendations))
	for i, r := range a.Recommendations {
		recs[i] = r
	}
	fields := map[string]any{
		"id":              a.ID,
		"kind":            string(a.Kind),
		"severity":        string(a.Severity),
		"subject":         a.Subject,
		"message":         a.Message,
		"recommendations": recs,
		"createdAt":       a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"resolved":        a.Resolved,
		"details": map[string]any{
			"observed":      a.Details.Observed,
			"threshold":     a.Details.Threshold,
			"unit":          a.Details.Unit,
			"windowStart":   a.Details.WindowStart.UTC().Format(time.RFC3339Nano),
			"windowEnd":     a.Details.WindowEnd.UTC().Format(time.RFC3339Nano),
			"affectedCount": a.Details.AffectedCount,
		},
	}
	if a.ResolvedAt != nil {
		fields["resolvedAt"] = a.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode alert %s: %w", a.ID, err)
	}
	return protojson.Marshal(s)
}
