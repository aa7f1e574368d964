// Package rename provides the rename-confirmation oracle the differ
// consults when it finds a candidate add/drop column pair that might
// actually be a rename (spec.md §6).
package rename

// Oracle answers "did you rename old->new on table, for an object of the
// given kind (column/table)?" A non-interactive default always answers no,
// which is always a safe (if noisier) answer: the differ falls back to a
// separate drop + add instead of a single RENAME.
type Oracle interface {
	ConfirmRename(table, oldName, newName, kind string) bool
}

// NonInteractive never confirms a rename. It is the default oracle for
// unattended runs (CI, scripted migrations) where no human is available
// to answer the prompt.
type NonInteractive struct{}

func (NonInteractive) ConfirmRename(table, oldName, newName, kind string) bool { return false }

// Func adapts a plain function to the Oracle interface, letting the CLI
// wire an interactive terminal prompt without a dedicated type.
type Func func(table, oldName, newName, kind string) bool

func (f Func) ConfirmRename(table, oldName, newName, kind string) bool {
	return f(table, oldName, newName, kind)
}
