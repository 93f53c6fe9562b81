package gcp

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spawn-mcp/tripsynth/pkg/alerting"
	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/monitor"
	"github.com/spawn-mcp/tripsynth/pkg/retry"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

var created = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

func sampleAlert() alerting.Alert {
	return alerting.Alert{
		ID:              "alert-1",
		Kind:            alerting.KindTargetExceeded,
		Severity:        alerting.SeverityHigh,
		Subject:         "agent-call",
		Message:         "agent-call took 45000ms, target 20000ms",
		Details:         alerting.Details{Observed: 45000, Threshold: 20000, Unit: "ms", WindowStart: created, WindowEnd: created, AffectedCount: 1},
		Recommendations: alerting.Recommendations(alerting.KindTargetExceeded),
		CreatedAt:       created,
	}
}

func newFakePubSub(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "travel-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, srv
}

func TestEncodeAlert(t *testing.T) {
	data, err := EncodeAlert(sampleAlert())
	require.NoError(t, err)

	var s structpb.Struct
	require.NoError(t, protojson.Unmarshal(data, &s))
	m := s.AsMap()
	assert.Equal(t, "alert-1", m["id"])
	assert.Equal(t, "target-exceeded", m["kind"])
	assert.Equal(t, "2024-07-01T10:00:00Z", m["createdAt"])
	assert.Equal(t, false, m["resolved"])
	assert.NotContains(t, m, "resolvedAt")

	details := m["details"].(map[string]any)
	assert.Equal(t, 45000.0, details["observed"])
	assert.Equal(t, 1.0, details["affectedCount"])
	assert.NotEmpty(t, m["recommendations"])
}

func TestAlertPublisherCreatesTopicAndPublishes(t *testing.T) {
	client, srv := newFakePubSub(t)
	p := NewAlertPublisher(client, "tripsynth-alerts", WithPublishRetry(retry.DefaultConfigs.Fast))
	defer p.Stop()

	ctx := context.Background()
	require.NoError(t, p.Notify(ctx, sampleAlert()))

	second := sampleAlert()
	second.ID = "alert-2"
	second.Kind = alerting.KindConsecutiveFailures
	require.NoError(t, p.Notify(ctx, second))

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "alert-1", msgs[0].Attributes["alertId"])
	assert.Equal(t, "high", msgs[0].Attributes["severity"])
	assert.Equal(t, "consecutive-failures", msgs[1].Attributes["kind"])

	var s structpb.Struct
	require.NoError(t, protojson.Unmarshal(msgs[0].Data, &s))
	assert.Equal(t, "agent-call", s.AsMap()["subject"])
}

func TestAlertPublisherReportsFailure(t *testing.T) {
	client, srv := newFakePubSub(t)
	srv.Close()

	p := NewAlertPublisher(client, "tripsynth-alerts", WithPublishRetry(retry.Config{MaxAttempts: 1}))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Notify(ctx, sampleAlert())
	require.Error(t, err)
	assert.Equal(t, errors.ErrPublishFailed, errors.Code(err))
}

func TestSnapshotDocument(t *testing.T) {
	resolvedAt := created.Add(time.Minute)
	older := sampleAlert()
	newer := sampleAlert()
	newer.ID = "alert-2"
	newer.CreatedAt = created.Add(time.Second)
	newer.Resolved = true
	newer.ResolvedAt = &resolvedAt

	snap := monitor.Snapshot{
		GeneratedAt: created,
		Window:      time.Hour,
		Categories: map[telemetry.Category]monitor.CategorySnapshot{
			telemetry.CategoryAgentCall: {
				Stats:             telemetry.Stats{Count: 4, SuccessRate: 0.75, ErrorRate: 0.25, P50: 1500 * time.Millisecond},
				Target:            20 * time.Second,
				RecommendedTarget: 54 * time.Second,
			},
		},
		Alerts:       []alerting.Alert{newer, older},
		ActiveAlerts: 1,
		MetricCount:  4,
	}

	doc := newSnapshotDocument(snap)
	assert.Equal(t, 3600.0, doc.WindowSeconds)
	require.Contains(t, doc.Categories, "agent-call")
	assert.Equal(t, 1500.0, doc.Categories["agent-call"].P50Ms)
	assert.Equal(t, 54000.0, doc.Categories["agent-call"].RecommendedTarget)
	require.Len(t, doc.Alerts, 2)
	assert.Equal(t, "alert-1", doc.Alerts[0].ID)
	assert.Equal(t, &resolvedAt, doc.Alerts[1].ResolvedAt)
	assert.Equal(t, "20240701T100000.000000000Z", SnapshotID(snap))
}

func TestSnapshotStoreWithEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "travel-test")
	require.NoError(t, err)
	defer client.Close()

	store := NewSnapshotStore(client, "snapshots-test")
	snap := monitor.Snapshot{GeneratedAt: time.Now().UTC(), Window: time.Hour, MetricCount: 3}
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	got, err := client.Collection("snapshots-test").Doc(SnapshotID(snap)).Get(ctx)
	require.NoError(t, err)
	var doc snapshotDocument
	require.NoError(t, got.DataTo(&doc))
	assert.Equal(t, 3, doc.MetricCount)
}
