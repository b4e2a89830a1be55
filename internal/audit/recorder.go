package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

// Recorder signs records and writes them as JSON objects under {env}/audit/.
type Recorder struct {
	store  storage.ObjectStore
	signer Signer
	clock  func() time.Time
}

// NewRecorder creates a Recorder writing into store.
func NewRecorder(store storage.ObjectStore, signer Signer, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{store: store, signer: signer, clock: clock}
}

// Write assigns an ID and timestamp when missing, signs rec with key and stores it.
func (r *Recorder) Write(ctx context.Context, key []byte, rec *Record) error {
	if rec.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate audit id: %w", err)
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock().UTC()
	}

	rec.Signature = nil
	sig, err := r.signer.Sign(key, rec)
	if err != nil {
		return err
	}
	rec.Signature = sig

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	if err := r.store.Write(ctx, objectKey(rec), data); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// List returns the records of env, oldest first.
func (r *Recorder) List(ctx context.Context, env string) ([]*Record, error) {
	keys, err := r.store.List(ctx, env+"/audit/")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := r.store.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Verify checks the signature of rec against key.
func (r *Recorder) Verify(key []byte, rec *Record) error {
	return r.signer.Verify(key, rec)
}

func objectKey(rec *Record) string {
	return fmt.Sprintf("%s/audit/%s-%s.json",
		rec.Environment, rec.CreatedAt.UTC().Format("20060102-150405"), rec.ID)
}
