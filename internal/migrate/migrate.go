// Package migrate implements the migration lifecycle (spec.md §4.7, C7):
// create, up, and down, wiring together the differ (C5), the snapshot and
// history stores (C6), dependency resolution (C4), and the trigger-body
// validator (C8) against a live connection pool.
package migrate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"sql-buns-migrate/internal/applylog"
	"sql-buns-migrate/internal/config"
	"sql-buns-migrate/internal/core"
	"sql-buns-migrate/internal/dbconn"
	"sql-buns-migrate/internal/depgraph"
	"sql-buns-migrate/internal/dialect"
	"sql-buns-migrate/internal/differ"
	"sql-buns-migrate/internal/history"
	"sql-buns-migrate/internal/rename"
	"sql-buns-migrate/internal/snapshot"
	"sql-buns-migrate/internal/triggerparse"
)

// ModelEntry is one exported model key and its Model, in the order the
// host program's model loader produced them (spec.md §6 "Model loader").
// Order matters only as a tiebreaker: depgraph.Resolve preserves it for
// models with no relative ordering constraint between them.
type ModelEntry struct {
	Key   string
	Model *core.Model
}

// Dependencies bundles everything the lifecycle needs beyond the model
// set itself: the resolved project config, an open connection pool, the
// dialect adapter it was opened against, a rename oracle, and the places
// progress/warnings/logs are written.
type Dependencies struct {
	Config  *config.Config
	Pool    *dbconn.Pool
	Dialect dialect.Dialect
	Oracle  rename.Oracle
	Log     *applylog.Logger
	Out     io.Writer
}

func (d Dependencies) oracle() rename.Oracle {
	if d.Oracle != nil {
		return d.Oracle
	}
	return rename.NonInteractive{}
}

// resolveCurrentSchema runs C4 over the host program's model set.
func resolveCurrentSchema(entries []ModelEntry) (*core.Schema, error) {
	keys := make([]string, 0, len(entries))
	models := make(map[string]*core.Model, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
		models[e.Key] = e.Model
	}
	return depgraph.Resolve(keys, models)
}

// CreateResult is create's outcome when it produces a new migration.
type CreateResult struct {
	Artifact snapshot.Artifact
	Warnings []differ.Warning
}

// Create implements spec.md §4.7 create(name).
func Create(ctx context.Context, deps Dependencies, entries []ModelEntry, name string) (*CreateResult, error) {
	dir := deps.Config.MigrationsDir

	current, err := resolveCurrentSchema(entries)
	if err != nil {
		return nil, err
	}

	oldSchema, err := snapshot.ReadSnapshot(dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read snapshot: %w", err)
	}

	oldChecksum, currentChecksum, err := core.ChecksumPair(oldSchema, current)
	if err != nil {
		return nil, fmt.Errorf("migrate: checksum: %w", err)
	}
	if oldChecksum == currentChecksum {
		return nil, nil
	}

	artifacts, err := snapshot.ListArtifacts(dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: list artifacts: %w", err)
	}

	store := history.NewStore(deps.Pool.DB, deps.Dialect)
	if err := store.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := store.AppliedNames(ctx)
	if err != nil {
		return nil, err
	}

	var unapplied []string
	for _, a := range artifacts {
		if _, ok := applied[a.Stem]; !ok {
			unapplied = append(unapplied, a.Stem)
		}
	}
	if len(unapplied) > 0 {
		sort.Strings(unapplied)
		return nil, &LocalAheadError{Names: unapplied}
	}

	if err := detectDrift(ctx, store, oldSchema, current, deps.Dialect, oldChecksum); err != nil {
		return nil, err
	}

	// The SQLite rebuild policy's pre-flight (spec.md §4.3 steps 1/2)
	// needs the live database's own schema catalog; Diff takes no
	// connection, so it is fetched once here and handed in as plain
	// data. Other dialects never consult it (sqlite_master doesn't
	// exist on them, and they always support ALTER COLUMN directly).
	var tableDDL, triggerBodies map[string]string
	if deps.Dialect.Name() == dialect.SQLite {
		tableDDL, err = deps.Pool.TableDDL(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: list table DDL: %w", err)
		}
		triggerBodies, err = deps.Pool.TriggerBodies(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: list trigger bodies: %w", err)
		}
	}

	validator := triggerparse.New(deps.Pool, current)
	result, err := differ.Diff(oldSchema, current, differ.Options{
		Dialect:       deps.Dialect,
		Oracle:        deps.oracle(),
		Validator:     validator,
		TableExists:   deps.Pool.TableExists,
		ColumnExists:  deps.Pool.ColumnExists,
		TableDDL:      tableDDL,
		TriggerBodies: triggerBodies,
	})
	if err != nil {
		return nil, fmt.Errorf("migrate: diff: %w", err)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(deps.Out, "Warnings: [%s] %s\n", w.Code, w.Message)
	}

	stem := snapshot.NewArtifactStem(name, snapshot.NowMillis())
	artifact, err := snapshot.WriteArtifact(dir, stem, result.Forward, result.Reverse, currentChecksum)
	if err != nil {
		return nil, err
	}
	if err := snapshot.WriteSnapshot(dir, current); err != nil {
		return nil, err
	}

	return &CreateResult{Artifact: artifact, Warnings: result.Warnings}, nil
}

// detectDrift implements spec.md §4.7's drift check: the most recent
// applied row's checksum must match the local old snapshot's checksum. On
// drift it also reconstructs the forward diff between the (now known
// stale) local snapshot and the desired model set, for printFatal to
// print alongside the error (spec.md §7 "SchemaDrift additionally prints
// the reconstructed diff for triage"). A failure to reconstruct the diff
// itself is not fatal — the drift error still carries the checksums.
func detectDrift(ctx context.Context, store *history.Store, oldSchema, current *core.Schema, d dialect.Dialect, localOldChecksum string) error {
	row, ok, err := store.LatestApplied(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if row.Checksum == localOldChecksum {
		return nil
	}
	driftErr := &SchemaDriftError{HistoryChecksum: row.Checksum, LocalChecksum: localOldChecksum}
	if preview, previewErr := differ.Diff(oldSchema, current, differ.Options{Dialect: d}); previewErr == nil {
		driftErr.Diff = preview.Forward
	}
	return driftErr
}

// UpResult reports what Up applied, if anything.
type UpResult struct {
	Applied string
}

// Up implements spec.md §4.7 up: applies the single oldest pending
// artifact (files minus applied), transactionally, with a history row
// written in the same transaction as the DDL.
func Up(ctx context.Context, deps Dependencies) (*UpResult, error) {
	dir := deps.Config.MigrationsDir

	artifacts, err := snapshot.ListArtifacts(dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: list artifacts: %w", err)
	}

	store := history.NewStore(deps.Pool.DB, deps.Dialect)
	if err := store.EnsureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := store.AppliedNames(ctx)
	if err != nil {
		return nil, err
	}

	var pending *snapshot.Artifact
	for i := range artifacts {
		if _, ok := applied[artifacts[i].Stem]; !ok {
			pending = &artifacts[i]
			break
		}
	}
	if pending == nil {
		return &UpResult{}, nil
	}

	script, err := snapshot.ReadStatements(pending.Forward)
	if err != nil {
		return nil, err
	}

	latest, hasLatest, err := store.LatestApplied(ctx)
	if err != nil {
		return nil, err
	}
	previousChecksum := ""
	if hasLatest {
		previousChecksum = latest.Checksum
	}

	// A rebuild's INSERT INTO ... SELECT against the old table, followed
	// by dropping it, trips FK enforcement against rows that still point
	// at it mid-statement; disabling it for the transaction and
	// re-enabling after is the rebuild policy's steps 3/8 (spec.md
	// §4.3), harmless to toggle even when this script has no rebuild.
	if err := deps.Pool.PragmaForeignKeys(ctx, false); err != nil {
		return nil, fmt.Errorf("migrate: disable foreign key enforcement: %w", err)
	}
	defer func() { _ = deps.Pool.PragmaForeignKeys(ctx, true) }()

	tx, err := deps.Pool.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		if deps.Log != nil {
			deps.Log.Failed("up", pending.Stem, err)
		}
		return nil, &ApplyFailedError{Artifact: pending.Stem, Cause: err}
	}

	txStore := history.NewStore(tx, deps.Dialect)
	row := history.Row{Name: pending.Stem, Checksum: pending.Checksum, PreviousChecksum: previousChecksum, Direction: "up"}
	if err := txStore.Insert(ctx, row); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &ApplyFailedError{Artifact: pending.Stem, Cause: err}
	}

	if deps.Log != nil {
		deps.Log.Applied(pending.Stem, row.Checksum)
	}

	return &UpResult{Applied: pending.Stem}, nil
}

// DownResult reports what Down rolled back, if anything.
type DownResult struct {
	RolledBack string
}

// Down implements spec.md §4.7 down: loads the latest applied row, runs
// its reverse artifact transactionally, and marks it rolled back in the
// same transaction.
func Down(ctx context.Context, deps Dependencies) (*DownResult, error) {
	dir := deps.Config.MigrationsDir

	store := history.NewStore(deps.Pool.DB, deps.Dialect)
	if err := store.EnsureTable(ctx); err != nil {
		return nil, err
	}

	latest, ok, err := store.LatestApplied(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &DownResult{}, nil
	}

	// previous_checksum chaining (spec.md §3, SPEC_FULL.md §12): the row
	// chained immediately before latest must still carry the checksum
	// latest recorded for it at apply time, catching a history table
	// edited out of band between applies.
	prior, hasPrior, err := store.PrecedingApplied(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	priorChecksum := ""
	if hasPrior {
		priorChecksum = prior.Checksum
	}
	if latest.PreviousChecksum != priorChecksum {
		return nil, &HistoryTamperedError{Name: latest.Name, Expected: latest.PreviousChecksum, Found: priorChecksum}
	}

	reversePath := filepath.Join(dir, latest.Name+".reverse.sql")
	script, err := snapshot.ReadStatements(reversePath)
	if err != nil {
		return nil, err
	}

	if err := deps.Pool.PragmaForeignKeys(ctx, false); err != nil {
		return nil, fmt.Errorf("migrate: disable foreign key enforcement: %w", err)
	}
	defer func() { _ = deps.Pool.PragmaForeignKeys(ctx, true) }()

	tx, err := deps.Pool.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		if deps.Log != nil {
			deps.Log.Failed("down", latest.Name, err)
		}
		return nil, &ApplyFailedError{Artifact: latest.Name, Cause: err}
	}

	txStore := history.NewStore(tx, deps.Dialect)
	if err := txStore.MarkRolledBack(ctx, latest.Name); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &ApplyFailedError{Artifact: latest.Name, Cause: err}
	}

	if deps.Log != nil {
		deps.Log.RolledBack(latest.Name)
	}

	return &DownResult{RolledBack: latest.Name}, nil
}

// LocalAheadError is raised when on-disk artifacts exist that are not yet
// recorded in history (spec.md §7 LocalAhead).
type LocalAheadError struct {
	Names []string
}

func (e *LocalAheadError) Error() string {
	return fmt.Sprintf("local migrations are ahead of history (%d unapplied); run `up` first", len(e.Names))
}

// SchemaDriftError is raised when the history table's last-applied
// checksum disagrees with the local old snapshot's checksum (spec.md §7
// SchemaDrift). Diff is the reconstructed forward DDL between the stale
// local snapshot and the desired model set, populated on a best-effort
// basis for diagnostics; it may be empty if reconstruction itself failed.
type SchemaDriftError struct {
	HistoryChecksum string
	LocalChecksum   string
	Diff            []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift detected: history checksum %s != local snapshot checksum %s", e.HistoryChecksum, e.LocalChecksum)
}

// HistoryTamperedError is raised when the row chained immediately before
// the one Down is about to revert no longer carries the checksum that row
// recorded as its previous_checksum at apply time (spec.md §3
// previous_checksum, SPEC_FULL.md §12).
type HistoryTamperedError struct {
	Name     string
	Expected string
	Found    string
}

func (e *HistoryTamperedError) Error() string {
	return fmt.Sprintf("history tampered: %q expected previous checksum %q, found %q", e.Name, e.Expected, e.Found)
}

// ApplyFailedError wraps a dialect error encountered while applying (or
// rolling back) a migration artifact (spec.md §7 ApplyFailed).
type ApplyFailedError struct {
	Artifact string
	Cause    error
}

func (e *ApplyFailedError) Error() string {
	return fmt.Sprintf("apply failed for %q: %v", e.Artifact, e.Cause)
}

func (e *ApplyFailedError) Unwrap() error { return e.Cause }
