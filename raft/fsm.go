package raft

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
	"github.com/devadigapratham/filamentlog/store"
	"github.com/hashicorp/raft"
)

// FSM implements the raft.FSM interface on top of the entry store. The
// store is the application state; the raft log is a durable journal of
// AddEntry commands.
type FSM struct {
	store *store.Store
	log   *logger.Logger
}

// NewFSM creates a new Finite State Machine over st
func NewFSM(st *store.Store, log *logger.Logger) *FSM {
	return &FSM{
		store: st,
		log:   log.With("component", "fsm"),
	}
}

// Apply applies a Raft log entry to the FSM. The response is either the
// stored *models.FilamentEntry, nil for a replayed index, or an error.
func (f *FSM) Apply(l *raft.Log) interface{} {
	cmd, err := models.UnmarshalCommand(l.Data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	switch cmd.Type {
	case models.AddEntry:
		if cmd.Entry == nil {
			return fmt.Errorf("entry is nil")
		}
		entry := *cmd.Entry
		applied, err := f.store.ApplyJournaled(context.Background(), &entry, l.Index)
		if err != nil {
			return err
		}
		if !applied {
			f.log.Debug("skipping replayed command", "index", l.Index, "request_id", cmd.RequestID)
			return nil
		}
		f.log.Debug("applied command", "index", l.Index, "request_id", cmd.RequestID, "id", entry.ID)
		return &entry

	default:
		return fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}

// Snapshot returns a snapshot of the FSM state
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	ctx := context.Background()
	entries, err := f.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries for snapshot: %w", err)
	}
	index, err := f.store.LastApplied(ctx)
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{Entries: entries, LastApplied: index}, nil
}

// Restore restores the FSM from a snapshot
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return err
	}

	f.log.Info("restoring snapshot", "entries", len(snapshot.Entries), "index", snapshot.LastApplied)
	return f.store.Restore(context.Background(), snapshot.Entries, snapshot.LastApplied)
}

// fsmSnapshot implements the raft.FSMSnapshot interface
type fsmSnapshot struct {
	Entries     []models.FilamentEntry `json:"entries"`
	LastApplied uint64                 `json:"last_applied"`
}

// Persist saves the snapshot to the provided sink
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
		return err
	}

	return nil
}

// Release is a no-op
func (s *fsmSnapshot) Release() {}
