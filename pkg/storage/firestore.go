package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/sunbridge/sunbridge/pkg/log"
	"github.com/sunbridge/sunbridge/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore. It
// persists settings, the per-channel snapshot, and event history under a
// document per device.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(deviceID, name string) (*firestore.CollectionRef, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("deviceID cannot be empty")
	}
	return f.client.Collection("devices").Doc(deviceID).Collection(name), nil
}

// GetSettings retrieves the device configuration from the "config/settings"
// document. A missing document yields zero settings at version 0 so a fresh
// device starts from defaults.
func (f *FirestoreProvider) GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error) {
	coll, err := f.getCollection(deviceID, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "settings doc missing json", slog.String("deviceID", deviceID))
		return types.Settings{}, 0, fmt.Errorf("settings document missing 'json' field: %w", err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "settings doc json not string", slog.String("deviceID", deviceID))
		return types.Settings{}, 0, fmt.Errorf("settings 'json' field is not a string")
	}

	var s types.Settings
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal settings json", slog.String("deviceID", deviceID), slog.Any("err", err))
		return types.Settings{}, 0, fmt.Errorf("failed to unmarshal settings json: %w", err)
	}
	return s, version, nil
}

// SetSettings saves the device configuration to the "config/settings"
// document. It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(deviceID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetSnapshot reads every persisted channel value for the device. Channels
// that were never written are simply absent from the result.
func (f *FirestoreProvider) GetSnapshot(ctx context.Context, deviceID string) (types.Snapshot, error) {
	coll, err := f.getCollection(deviceID, "snapshot")
	if err != nil {
		return nil, err
	}

	snap := types.Snapshot{}
	iter := coll.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate snapshot: %w", err)
		}
		val, err := doc.DataAt("value")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "snapshot doc missing value",
				slog.String("deviceID", deviceID), slog.String("channel", doc.Ref.ID))
			continue
		}
		switch v := val.(type) {
		case float64:
			snap[types.Channel(doc.Ref.ID)] = v
		case int64:
			snap[types.Channel(doc.Ref.ID)] = float64(v)
		}
	}
	return snap, nil
}

// SetChannelValue writes one channel's value to its own document so channels
// update independently of each other.
func (f *FirestoreProvider) SetChannelValue(ctx context.Context, deviceID string, channel types.Channel, value float64) error {
	coll, err := f.getCollection(deviceID, "snapshot")
	if err != nil {
		return err
	}
	_, err = coll.Doc(string(channel)).Set(ctx, map[string]interface{}{
		"value":     value,
		"updatedAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to save channel %s: %w", channel, err)
	}
	return nil
}

// eventDocTimeFormat is RFC3339 with a fixed-width nanosecond fraction so
// document IDs sort chronologically. time.RFC3339Nano drops trailing zeros
// which breaks lexicographic ordering.
const eventDocTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// eventDocID keys an event document by timestamp plus kind and channel so a
// batch of events stamped in the same instant does not collide.
func eventDocID(event types.Event) string {
	return event.At.UTC().Format(eventDocTimeFormat) + "-" + string(event.Kind) + "-" + string(event.Channel)
}

// InsertEvent adds an event record to the "event_history" collection as a
// JSON blob. The document ID orders by timestamp for efficient range queries.
func (f *FirestoreProvider) InsertEvent(ctx context.Context, deviceID string, event types.Event) error {
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	coll, err := f.getCollection(deviceID, "event_history")
	if err != nil {
		return err
	}
	_, err = coll.Doc(eventDocID(event)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": event.At,
	})
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetEventHistory retrieves events within the specified time range. Uses
// document ID range queries so only matching documents are read.
func (f *FirestoreProvider) GetEventHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.Event, error) {
	// event IDs carry a "-kind-channel" suffix, so a bare timestamp bound
	// still sorts before every event at that instant
	startDocID := start.UTC().Format(eventDocTimeFormat)
	endDocID := end.UTC().Format(eventDocTimeFormat)

	coll, err := f.getCollection(deviceID, "event_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var events []types.Event
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate events: %w", err)
		}
		val, err := doc.DataAt("json")
		if err != nil {
			continue
		}
		jsonStr, ok := val.(string)
		if !ok {
			continue
		}
		var ev types.Event
		if err := json.Unmarshal([]byte(jsonStr), &ev); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal event json",
				slog.String("deviceID", deviceID), slog.String("doc", doc.Ref.ID), slog.Any("err", err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
