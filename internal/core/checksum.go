package core

import "sql-buns-migrate/internal/canon"

// Checksum computes the SHA-256 checksum of a single schema's canonical view,
// with no index-name normalization; ChecksumPair applies the pre-checksum
// index-name normalization described in spec.md §4.1.
//
// Because an index's Name is auto-synthesized when absent, two schemas that
// differ only by an auto-name must hash equally. Before checksumming, we walk
// old and current pairwise by effective table name; for each matching pair we
// build a key per index as "<sorted fields>|<unique?>" (Index.Key()). When
// the current side's index lacks an explicit name but the old side has one
// under the same key, we strip the old side's name before hashing old. The
// current side is never altered, and no name is ever fabricated.
func Checksum(current *Schema) (string, error) {
	return canon.Checksum(current.CanonicalView())
}

// ChecksumPair computes checksums for an (old, current) schema pair with the
// normalization above applied to old only, so that an index that had an
// explicit name in old and has none in current hashes the same on both
// sides. The opposite case is not normalized: an explicit name added in
// current to an index that was unnamed in old still changes current's
// checksum relative to old's.
func ChecksumPair(old, current *Schema) (oldSum, currentSum string, err error) {
	normalizedOld := normalizeOldIndexNames(old, current)

	currentSum, err = canon.Checksum(current.CanonicalView())
	if err != nil {
		return "", "", err
	}
	oldSum, err = canon.Checksum(normalizedOld.CanonicalView())
	if err != nil {
		return "", "", err
	}
	return oldSum, currentSum, nil
}

// normalizeOldIndexNames returns a shallow copy of old in which, for each
// table present in both old and current, any old index whose key matches a
// current index lacking an explicit name has its own name stripped.
func normalizeOldIndexNames(old, current *Schema) *Schema {
	if old == nil {
		return old
	}
	models := make(map[string]*Model, len(old.models))
	for key, oldModel := range old.models {
		models[key] = normalizeModelIndexNames(oldModel, current)
	}
	return &Schema{keys: append([]string(nil), old.keys...), models: models}
}

// normalizeModelIndexNames returns oldModel unchanged unless it has at
// least one explicitly-named index whose (sorted-fields, unique) key
// matches an unnamed index on the same-named table in current, in which
// case it returns a shallow copy with that index's name stripped.
func normalizeModelIndexNames(oldModel *Model, current *Schema) *Model {
	curModel, ok := current.ByTableName(oldModel.TableName())
	if !ok {
		return oldModel
	}
	curUnnamedKeys := make(map[string]struct{}, len(curModel.Meta.Indexes))
	for _, idx := range curModel.Meta.Indexes {
		if idx.Name == "" {
			curUnnamedKeys[idx.Key()] = struct{}{}
		}
	}
	if len(curUnnamedKeys) == 0 {
		return oldModel
	}

	changed := false
	clonedIndexes := make([]*Index, len(oldModel.Meta.Indexes))
	for i, idx := range oldModel.Meta.Indexes {
		if idx.Name != "" {
			if _, matches := curUnnamedKeys[idx.Key()]; matches {
				stripped := *idx
				stripped.Name = ""
				clonedIndexes[i] = &stripped
				changed = true
				continue
			}
		}
		clonedIndexes[i] = idx
	}
	if !changed {
		return oldModel
	}
	clone := *oldModel
	clone.Meta.Indexes = clonedIndexes
	return &clone
}
