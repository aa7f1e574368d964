// Package snapshot writes and reads schema_snapshot.json and the paired
// forward/reverse migration artifact files (spec.md §4.6, C6). It owns no
// database state: the history table lives in package history.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"sql-buns-migrate/internal/core"
)

// SnapshotFileName is schema_snapshot.json's fixed name under the
// migrations directory (spec.md §6 "Configured paths").
const SnapshotFileName = "schema_snapshot.json"

// WriteSnapshot atomically writes schema's canonical, topologically
// ordered view to <dir>/schema_snapshot.json, pretty-printed with a
// two-space indent (spec.md §6 "Snapshot format"). "Atomic" here means
// write-to-temp-then-rename, so a crash mid-write never leaves a
// truncated snapshot in place for the next create to read.
func WriteSnapshot(dir string, schema *core.Schema) error {
	ordered := schema.OrderedCanonicalView()
	// encoding/json has no native "ordered map" type; we build the object
	// byte-by-byte to preserve the topological key order spec.md §3
	// requires ("An ordered mapping model-key -> Model... ordered by
	// topological sort"), which a map[string]any would lose on marshal.
	var b strings.Builder
	b.WriteString("{\n")
	for i, kv := range ordered {
		keyJSON, err := json.Marshal(kv.Key)
		if err != nil {
			return fmt.Errorf("snapshot: marshal model key %q: %w", kv.Key, err)
		}
		valueJSON, err := json.MarshalIndent(kv.View, "  ", "  ")
		if err != nil {
			return fmt.Errorf("snapshot: marshal model %q: %w", kv.Key, err)
		}
		fmt.Fprintf(&b, "  %s: %s", keyJSON, valueJSON)
		if i < len(ordered)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")

	path := filepath.Join(dir, SnapshotFileName)
	tmp := path + ".tmp"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: ensure migrations directory: %w", err)
	}
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return nil
}

// ReadSnapshot loads schema_snapshot.json from dir and reconstructs a
// *core.Schema from it. A missing file returns an empty schema (no error),
// matching spec.md §4.7 create's "old snapshot (empty if absent)".
func ReadSnapshot(dir string) (*core.Schema, error) {
	path := filepath.Join(dir, SnapshotFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return core.NewSchemaInOrder(nil, map[string]*core.Model{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	models := make(map[string]*core.Model, len(raw))
	for _, key := range keys {
		view, ok := raw[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("snapshot: model %q view is malformed", key)
		}
		m, err := core.ModelFromView(view)
		if err != nil {
			return nil, fmt.Errorf("snapshot: model %q: %w", key, err)
		}
		models[key] = m
	}
	return core.NewSchemaInOrder(keys, models), nil
}

// Artifact is a forward/reverse DDL pair with the timestamped, sanitized
// file stem spec.md §3 describes.
type Artifact struct {
	Stem     string // "<epoch-ms>_<slug>"
	Forward  string // <dir>/<stem>.sql
	Reverse  string // <dir>/<stem>.reverse.sql
	Checksum string // schema checksum this artifact moves the database to
}

var slugDisallowed = regexp.MustCompile(`[^a-z0-9_-]+`)

// Slugify lowercases name, replaces any run of characters outside
// [a-z0-9_-] with a single underscore, and trims leading/trailing
// underscores (spec.md §3 "Migration artifact").
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugDisallowed.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NewArtifactStem builds "<epoch-ms>_<slug>" for a migration named name,
// created at epochMillis.
func NewArtifactStem(name string, epochMillis int64) string {
	return fmt.Sprintf("%d_%s", epochMillis, Slugify(name))
}

// WriteArtifact writes the forward and reverse DDL files for stem under
// dir, plus a small sidecar recording the schema checksum this artifact
// moves the database to. Each statement list is joined with a blank line
// between statements; no transactional wrapper is added (spec.md §6
// "Migration SQL file": "no transactional wrappers, the runner wraps").
// The checksum sidecar lets `up` attribute a history row's checksum to the
// artifact it applied without re-diffing or re-reading schema_snapshot.json,
// which may have moved on to a later create by the time `up` runs.
func WriteArtifact(dir, stem string, forward, reverse []string, checksum string) (Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("snapshot: ensure migrations directory: %w", err)
	}
	art := Artifact{
		Stem:     stem,
		Forward:  filepath.Join(dir, stem+".sql"),
		Reverse:  filepath.Join(dir, stem+".reverse.sql"),
		Checksum: checksum,
	}
	if err := os.WriteFile(art.Forward, []byte(joinStatements(forward)), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("snapshot: write forward artifact: %w", err)
	}
	if err := os.WriteFile(art.Reverse, []byte(joinStatements(reverse)), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("snapshot: write reverse artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".checksum"), []byte(checksum), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("snapshot: write checksum sidecar: %w", err)
	}
	return art, nil
}

func joinStatements(stmts []string) string {
	return strings.Join(stmts, "\n\n") + "\n"
}

// ListArtifacts returns every forward artifact's stem under dir, in
// lexicographic order, which coincides with chronological order because
// of the epoch-millisecond prefix (spec.md §4.6, §5 "Ordering
// guarantees").
func ListArtifacts(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", dir, err)
	}
	var stems []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, ".reverse.sql") {
			continue
		}
		stems = append(stems, strings.TrimSuffix(name, ".sql"))
	}
	sort.Strings(stems)

	out := make([]Artifact, 0, len(stems))
	for _, stem := range stems {
		checksum, _ := os.ReadFile(filepath.Join(dir, stem+".checksum"))
		out = append(out, Artifact{
			Stem:     stem,
			Forward:  filepath.Join(dir, stem+".sql"),
			Reverse:  filepath.Join(dir, stem+".reverse.sql"),
			Checksum: string(checksum),
		})
	}
	return out, nil
}

// ReadStatements reads a migration artifact file as a single script body
// (spec.md §6: CREATE TRIGGER bodies are multi-line and must survive
// naive statement splitting, so the runner executes the whole file at
// once rather than splitting on ";").
func ReadStatements(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("snapshot: read artifact %s: %w", path, err)
	}
	return string(data), nil
}

// NowMillis is the epoch-millisecond clock used to stamp new artifact
// stems. It is a var, not a direct time.Now() call, so migration lifecycle
// tests can substitute a deterministic clock.
var NowMillis = func() int64 {
	return time.Now().UnixMilli()
}
