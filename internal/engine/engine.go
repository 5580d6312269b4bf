// Package engine wires configuration, locking, the transaction
// conglomerate, master tables, and the catalog managers into the single
// composition root a caller opens a database through (spec §6's external
// surface: Open, CreateTable, DropTable, CheckAndRepair).
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ponydb/internal/config"
	"ponydb/internal/lock"
	"ponydb/internal/master"
	"ponydb/internal/txn"
	"ponydb/internal/types"
)

const lockFileName = "database.lock"

// Engine is one open database: its conglomerate, mode controller, and
// worker pool, plus the presence-detection lock file of spec §6.
type Engine struct {
	cfg      config.Config
	cg       *txn.Conglomerate
	modeCtl  *lock.ModeController
	pool     *lock.WorkerPool
	lockPath string

	mu      sync.Mutex
	tables  map[string]*master.Table
	nextID  int64
}

// Open acquires the database lock file, opens (or creates) the
// conglomerate rooted at cfg.DataDir, and returns a ready Engine. If
// database.lock is already present and cannot be removed, Open fails with
// "already in use" (spec §6).
func Open(cfg config.Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir %q: %w", cfg.DataDir, err)
	}
	lockPath := filepath.Join(cfg.DataDir, lockFileName)
	if err := acquireLockFile(lockPath); err != nil {
		return nil, err
	}

	cg, err := txn.Open(cfg.DataDir)
	if err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("engine: open conglomerate: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		cg:       cg,
		modeCtl:  lock.NewModeController(),
		pool:     lock.NewWorkerPool(4),
		lockPath: lockPath,
		tables:   map[string]*master.Table{},
	}
	if err := e.loadExistingTables(); err != nil {
		os.Remove(lockPath)
		return nil, err
	}
	return e, nil
}

func acquireLockFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		if rmErr := os.Remove(path); rmErr != nil {
			return fmt.Errorf("engine: database already in use (stale lock %q): %w", path, rmErr)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("engine: database already in use: %w", err)
	}
	return f.Close()
}

// loadExistingTables re-opens every table-*.axi file found in the data
// directory so a reopened database sees its prior tables without a
// caller having to re-declare them.
func (e *Engine) loadExistingTables() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("engine: scan data dir: %w", err)
	}
	for _, ent := range entries {
		var id int64
		if _, err := fmt.Sscanf(ent.Name(), "table-%d.axi", &id); err != nil {
			continue
		}
		if ent.Name() != fmt.Sprintf("table-%d.axi", id) {
			continue // e.g. the table-N.axi.wal journal beside each .axi file
		}
		tbl, needsRecovery, err := master.Open(e.cfg.DataDir, id, nil)
		if err != nil {
			return fmt.Errorf("engine: open table %d: %w", id, err)
		}
		if needsRecovery {
			if err := tbl.Fix(); err != nil {
				return fmt.Errorf("engine: fix table %d: %w", id, err)
			}
			if err := tbl.Replay(); err != nil {
				return fmt.Errorf("engine: replay table %d: %w", id, err)
			}
		}
		e.cg.RegisterTable(tbl)
		e.mu.Lock()
		e.tables[tbl.Def.Name] = tbl
		if id >= e.nextID {
			e.nextID = id + 1
		}
		e.mu.Unlock()
	}
	return nil
}

// CreateTable creates and registers a new table under def.Name.
func (e *Engine) CreateTable(def *types.TableDef) (*master.Table, error) {
	e.mu.Lock()
	if _, exists := e.tables[def.Name]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine: table %q already exists", def.Name)
	}
	id := e.nextID
	e.nextID++
	e.mu.Unlock()

	tbl, err := master.Create(e.cfg.DataDir, id, def, e.cfg.SectorSize, e.cfg.IndexBlockSize)
	if err != nil {
		return nil, fmt.Errorf("engine: create table %q: %w", def.Name, err)
	}
	e.cg.RegisterTable(tbl)
	e.mu.Lock()
	e.tables[def.Name] = tbl
	e.mu.Unlock()
	return tbl, nil
}

// Table returns a previously created or loaded table by name, or nil.
func (e *Engine) Table(name string) *master.Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables[name]
}

// DropTable closes and removes a table's on-disk files. Callers must
// ensure no open transaction references it.
func (e *Engine) DropTable(name string) error {
	e.mu.Lock()
	tbl, ok := e.tables[name]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine: no such table %q", name)
	}
	delete(e.tables, name)
	id := tbl.ID
	e.mu.Unlock()

	if err := tbl.Close(); err != nil {
		return fmt.Errorf("engine: close table %q before drop: %w", name, err)
	}
	base := filepath.Join(e.cfg.DataDir, fmt.Sprintf("table-%d", id))
	for _, ext := range []string{".axi", ".dss", ".iid"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("engine: remove %s: %w", base+ext, err)
		}
	}
	return nil
}

// Begin starts a new transaction against this engine's conglomerate.
func (e *Engine) Begin() *txn.Transaction { return e.cg.Begin() }

// Conglomerate exposes the underlying conglomerate for catalog managers
// and other components that subscribe to commit events.
func (e *Engine) Conglomerate() *txn.Conglomerate { return e.cg }

// Pool exposes the engine's worker pool for connection command dispatch.
func (e *Engine) Pool() *lock.WorkerPool { return e.pool }

// CheckAndRepair fixes every registered table's underlying stores and
// replays their committed rows, for use after an unclean shutdown.
func (e *Engine) CheckAndRepair() error {
	e.mu.Lock()
	tables := make([]*master.Table, 0, len(e.tables))
	for _, tbl := range e.tables {
		tables = append(tables, tbl)
	}
	e.mu.Unlock()

	for _, tbl := range tables {
		if err := tbl.Fix(); err != nil {
			return fmt.Errorf("engine: fix table %d: %w", tbl.ID, err)
		}
		if err := tbl.Replay(); err != nil {
			return fmt.Errorf("engine: replay table %d: %w", tbl.ID, err)
		}
	}
	return nil
}

// Close shuts down the worker pool, closes every table, and removes the
// presence-detection lock file (spec §6: "deleted on clean close").
func (e *Engine) Close() error {
	if err := e.pool.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("engine: shut down worker pool: %w", err)
	}

	e.mu.Lock()
	tables := make([]*master.Table, 0, len(e.tables))
	for _, tbl := range e.tables {
		tables = append(tables, tbl)
	}
	e.mu.Unlock()

	var firstErr error
	for _, tbl := range tables {
		if err := tbl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := os.Remove(e.lockPath); err != nil && !os.IsNotExist(err) && firstErr == nil {
		firstErr = fmt.Errorf("engine: remove lock file: %w", err)
	}
	return firstErr
}
