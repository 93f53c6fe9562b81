package gcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
	"github.com/spawn-mcp/tripsynth/pkg/monitor"
)

// SnapshotStore writes monitor snapshots to a Firestore collection, one
// document per snapshot keyed by its generation time.
type SnapshotStore struct {
	client     *firestore.Client
	collection string
}

// NewSnapshotStore builds a store for collection
func NewSnapshotStore(client *firestore.Client, collection string) *SnapshotStore {
	return &SnapshotStore{client: client, collection: collection}
}

// SaveSnapshot stores s
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap monitor.Snapshot) error {
	doc := newSnapshotDocument(snap)
	_, err := s.client.Collection(s.collection).Doc(SnapshotID(snap)).Set(ctx, doc)
	if err != nil {
		return errors.Wrap(fmt.Errorf("failed to store snapshot: %w", err), errors.ErrStoreUnavailable)
	}
	return nil
}

// SnapshotID is the document id for snap
func SnapshotID(snap monitor.Snapshot) string {
	return snap.GeneratedAt.UTC().Format("20060102T150405.000000000Z")
}

type categoryDocument struct {
	Count             int     `firestore:"count"`
	SuccessRate       float64 `firestore:"successRate"`
	ErrorRate         float64 `firestore:"errorRate"`
	MeanMs            float64 `firestore:"meanMs"`
	P50Ms             float64 `firestore:"p50Ms"`
	P95Ms             float64 `firestore:"p95Ms"`
	P99Ms             float64 `firestore:"p99Ms"`
	TargetMs          float64 `firestore:"targetMs"`
	RecommendedTarget float64 `firestore:"recommendedTargetMs"`
}

type alertDocument struct {
	ID         string     `firestore:"id"`
	Kind       string     `firestore:"kind"`
	Severity   string     `firestore:"severity"`
	Subject    string     `firestore:"subject"`
	Message    string     `firestore:"message"`
	Observed   float64    `firestore:"observed"`
	Threshold  float64    `firestore:"threshold"`
	Unit       string     `firestore:"unit"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	Resolved   bool       `firestore:"resolved"`
	ResolvedAt *time.Time `firestore:"resolvedAt"`
}

type snapshotDocument struct {
	GeneratedAt   time.Time                   `firestore:"generatedAt"`
	WindowSeconds float64                     `firestore:"windowSeconds"`
	Categories    map[string]categoryDocument `firestore:"categories"`
	Alerts        []alertDocument             `firestore:"alerts"`
	ActiveAlerts  int                         `firestore:"activeAlerts"`
	InFlight      int                         `firestore:"inFlight"`
	MetricCount   int                         `firestore:"metricCount"`
}

func newSnapshotDocument(snap monitor.Snapshot) snapshotDocument {
	doc := snapshotDocument{
		GeneratedAt:   snap.GeneratedAt,
		WindowSeconds: snap.Window.Seconds(),
		Categories:    make(map[string]categoryDocument, len(snap.Categories)),
		Alerts:        make([]alertDocument, 0, len(snap.Alerts)),
		ActiveAlerts:  snap.ActiveAlerts,
		InFlight:      snap.InFlight,
		MetricCount:   snap.MetricCount,
	}
	for cat, c := range snap.Categories {
		doc.Categories[string(cat)] = categoryDocument{
			Count:             c.Stats.Count,
			SuccessRate:       c.Stats.SuccessRate,
			ErrorRate:         c.Stats.ErrorRate,
			MeanMs:            millis(c.Stats.Mean),
			P50Ms:             millis(c.Stats.P50),
			P95Ms:             millis(c.Stats.P95),
			P99Ms:             millis(c.Stats.P99),
			TargetMs:          millis(c.Target),
			RecommendedTarget: millis(c.RecommendedTarget),
		}
	}
	for _, a := range snap.Alerts {
		doc.Alerts = append(doc.Alerts, alertDocument{
			ID:         a.ID,
			Kind:       string(a.Kind),
			Severity:   string(a.Severity),
			Subject:    a.Subject,
			Message:    a.Message,
			Observed:   a.Details.Observed,
			Threshold:  a.Details.Threshold,
			Unit:       a.Details.Unit,
			CreatedAt:  a.CreatedAt,
			Resolved:   a.Resolved,
			ResolvedAt: a.ResolvedAt,
		})
	}
	sort.Slice(doc.Alerts, func(i, j int) bool { return doc.Alerts[i].CreatedAt.Before(doc.Alerts[j].CreatedAt) })
	return doc
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
