package raft

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
	"github.com/devadigapratham/filamentlog/store"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// Node is a single-voter raft node used as a local write journal. It uses
// an in-memory transport, so it never opens a socket.
type Node struct {
	raft        *raft.Raft
	transport   *raft.InmemTransport
	logStore    *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore
	log         *logger.Logger
	timeout     time.Duration
}

// Config represents the configuration for a journal node
type Config struct {
	NodeID   string
	Dir      string
	LogLevel string
	// ApplyTimeout bounds a single journal write; zero means 5s
	ApplyTimeout time.Duration
}

// NewNode opens the journal in cfg.Dir and bootstraps it on first use
func NewNode(cfg *Config, st *store.Store, log *logger.Logger) (*Node, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	nodeLog := log.With("component", "journal", "node_id", cfg.NodeID)

	fsm := NewFSM(st, log)

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.SnapshotInterval = 20 * time.Second
	raftConfig.SnapshotThreshold = 1024
	// A lone voter has nobody to wait for.
	raftConfig.HeartbeatTimeout = 50 * time.Millisecond
	raftConfig.ElectionTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 50 * time.Millisecond
	raftConfig.CommitTimeout = 5 * time.Millisecond
	// raft's own hclog lines are passed through as single zap messages
	raftOut := &zapio.Writer{Log: nodeLog.SugaredLogger.Desugar(), Level: zapcore.WarnLevel}
	raftConfig.LogOutput = raftOut
	raftConfig.LogLevel = "ERROR"
	if cfg.LogLevel != "" {
		raftConfig.LogLevel = cfg.LogLevel
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create BoltDB log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.Dir, "raft-stable.db"))
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("failed to create BoltDB stable store: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.Dir, 3, &zapio.Writer{Log: raftOut.Log, Level: zapcore.DebugLevel})
	if err != nil {
		logStore.Close()
		stableStore.Close()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	addr, transport := raft.NewInmemTransport(raft.ServerAddress(cfg.NodeID))

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		logStore.Close()
		stableStore.Close()
		return nil, fmt.Errorf("failed to create Raft instance: %w", err)
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{
				ID:      raft.ServerID(cfg.NodeID),
				Address: addr,
			},
		},
	}
	f := r.BootstrapCluster(configuration)
	if err := f.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
		r.Shutdown()
		logStore.Close()
		stableStore.Close()
		return nil, fmt.Errorf("failed to bootstrap journal: %w", err)
	}

	timeout := cfg.ApplyTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Node{
		raft:        r,
		transport:   transport,
		logStore:    logStore,
		stableStore: stableStore,
		log:         nodeLog,
		timeout:     timeout,
	}, nil
}

// WaitForLeader blocks until the node has elected itself or ctx is done
func (n *Node) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if n.Leader() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("journal has no leader: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Apply applies a command to the Raft log and returns the FSM response
func (n *Node) Apply(cmd *models.Command) (interface{}, error) {
	data, err := cmd.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	future := n.raft.Apply(data, n.timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to apply command to Raft log: %w", err)
	}

	resp := future.Response()
	if appErr, ok := resp.(error); ok && appErr != nil {
		return nil, fmt.Errorf("command application failed: %w", appErr)
	}
	return resp, nil
}

// Append journals e as an AddEntry command and sets the id assigned by
// the store.
func (n *Node) Append(ctx context.Context, e *models.FilamentEntry) error {
	if err := n.WaitForLeader(ctx); err != nil {
		return err
	}

	cmd := &models.Command{
		Type:      models.AddEntry,
		RequestID: uuid.New().String(),
		Entry:     e,
	}
	resp, err := n.Apply(cmd)
	if err != nil {
		return err
	}

	stored, ok := resp.(*models.FilamentEntry)
	if !ok || stored == nil {
		return fmt.Errorf("journal returned no entry for request %s", cmd.RequestID)
	}
	*e = *stored
	n.log.Debug("entry journaled", "request_id", cmd.RequestID, "id", e.ID)
	return nil
}

// Snapshot forces a snapshot of the current state
func (n *Node) Snapshot() error {
	return n.raft.Snapshot().Error()
}

// Leader returns true if this node is the leader
func (n *Node) Leader() bool {
	return n.raft.State() == raft.Leader
}

// Shutdown stops the Raft node and closes its stores
func (n *Node) Shutdown() error {
	var errs []error
	if n.raft != nil {
		errs = append(errs, n.raft.Shutdown().Error())
	}
	if n.transport != nil {
		errs = append(errs, n.transport.Close())
	}
	if n.logStore != nil {
		errs = append(errs, n.logStore.Close())
	}
	if n.stableStore != nil {
		errs = append(errs, n.stableStore.Close())
	}
	return errors.Join(errs...)
}
