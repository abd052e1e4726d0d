package tenantdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type tracked struct {
	entry    Entry
	snapshot []byte
}

// Tracker is an in-memory ChangeSet. Entities loaded from storage are
// attached unchanged; DetectChanges compares them with their snapshot taken
// at attach time and marks changed ones as modified.
type Tracker struct {
	mu      sync.Mutex
	entries []*tracked
}

var _ ChangeSet = (*Tracker)(nil)

func NewTracker() *Tracker {
	return &Tracker{}
}

// Attach starts tracking an entity loaded from storage.
func (t *Tracker) Attach(entityType string, entity any) error {
	snap, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", entityType, err)
	}
	t.track(Entry{Type: entityType, Entity: entity, Op: Unchanged}, snap)
	return nil
}

// Add tracks a new entity.
func (t *Tracker) Add(entityType string, entity any) {
	t.track(Entry{Type: entityType, Entity: entity, Op: Added}, nil)
}

// Update marks an entity as modified without waiting for DetectChanges.
func (t *Tracker) Update(entityType string, entity any) {
	if e := t.find(entity); e != nil && e.entry.Op == Unchanged {
		t.mu.Lock()
		e.entry.Op = Modified
		t.mu.Unlock()
		return
	}
	t.track(Entry{Type: entityType, Entity: entity, Op: Modified}, nil)
}

// Delete marks an entity for removal. Deleting an entity added in the same
// unit of work forgets it.
func (t *Tracker) Delete(entityType string, entity any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.entry.Entity != entity {
			continue
		}
		if e.entry.Op == Added {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
		e.entry.Op = Deleted
		return
	}
	t.entries = append(t.entries, &tracked{entry: Entry{Type: entityType, Entity: entity, Op: Deleted}})
}

func (t *Tracker) DetectChanges(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.entry.Op != Unchanged {
			continue
		}
		cur, err := json.Marshal(e.entry.Entity)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", e.entry.Type, err)
		}
		if !bytes.Equal(cur, e.snapshot) {
			e.entry.Op = Modified
		}
	}
	return nil
}

// Entries returns pending changes in tracking order. Unchanged entities are omitted.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.entry.Op != Unchanged {
			out = append(out, e.entry)
		}
	}
	return out
}

// AcceptChanges forgets deleted entities and resets the rest to unchanged
// with fresh snapshots. Call it after a successful save.
func (t *Tracker) AcceptChanges() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.entry.Op == Deleted {
			continue
		}
		snap, err := json.Marshal(e.entry.Entity)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", e.entry.Type, err)
		}
		e.entry.Op = Unchanged
		e.snapshot = snap
		kept = append(kept, e)
	}
	clear(t.entries[len(kept):])
	t.entries = kept
	return nil
}

func (t *Tracker) track(e Entry, snap []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, &tracked{entry: e, snapshot: snap})
}

func (t *Tracker) find(entity any) *tracked {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.entry.Entity == entity {
			return e
		}
	}
	return nil
}
