package core

import (
	"fmt"
	"regexp"
	"strings"
)

// TriggerEvent enumerates the DML event a trigger slot fires on.
type TriggerEvent string

const (
	EventInsert TriggerEvent = "INSERT"
	EventUpdate TriggerEvent = "UPDATE"
	EventDelete TriggerEvent = "DELETE"
)

// TriggerTiming enumerates when, relative to the event, a trigger fires.
type TriggerTiming string

const (
	TimingBefore TriggerTiming = "BEFORE"
	TimingAfter  TriggerTiming = "AFTER"
)

// TriggerSlot names the six trigger attachment points a Model exposes.
type TriggerSlot string

const (
	SlotBeforeInsert TriggerSlot = "beforeInsert"
	SlotAfterInsert  TriggerSlot = "afterInsert"
	SlotBeforeUpdate TriggerSlot = "beforeUpdate"
	SlotAfterUpdate  TriggerSlot = "afterUpdate"
	SlotBeforeDelete TriggerSlot = "beforeDelete"
	SlotAfterDelete  TriggerSlot = "afterDelete"
)

var slotMeta = map[TriggerSlot]struct {
	Timing TriggerTiming
	Event  TriggerEvent
}{
	SlotBeforeInsert: {TimingBefore, EventInsert},
	SlotAfterInsert:  {TimingAfter, EventInsert},
	SlotBeforeUpdate: {TimingBefore, EventUpdate},
	SlotAfterUpdate:  {TimingAfter, EventUpdate},
	SlotBeforeDelete: {TimingBefore, EventDelete},
	SlotAfterDelete:  {TimingAfter, EventDelete},
}

// Statement is one entry of a Trigger's statement list: either a raw body
// string, or a structured {body, when} pair where When is an optional row
// predicate.
type Statement struct {
	Body string
	When string
}

// Trigger is the normalized form of a trigger slot: timing, event and an
// ordered list of statements, carrying the slot's base name for rename
// comparisons during diffing (spec.md §4.5 "Triggers").
type Trigger struct {
	Timing     TriggerTiming
	Event      TriggerEvent
	Statements []Statement
	BaseName   string
}

// NewTrigger constructs a Trigger for the given slot from a list of raw
// bodies or Statement values. Accepts either form per entry; a bare string
// becomes a Statement with no When predicate.
func NewTrigger(slot TriggerSlot, entries ...any) (*Trigger, error) {
	meta, ok := slotMeta[slot]
	if !ok {
		return nil, &InvalidTriggerError{Trigger: string(slot), Reason: "unknown trigger slot"}
	}
	if len(entries) == 0 {
		return nil, &InvalidTriggerError{Trigger: string(slot), Reason: "trigger must have at least one statement"}
	}
	t := &Trigger{Timing: meta.Timing, Event: meta.Event, BaseName: string(slot)}
	for i, e := range entries {
		switch v := e.(type) {
		case string:
			t.Statements = append(t.Statements, Statement{Body: v})
		case Statement:
			t.Statements = append(t.Statements, v)
		default:
			return nil, &InvalidTriggerError{Trigger: string(slot), Reason: fmt.Sprintf("statement %d is neither a string nor a Statement", i)}
		}
	}
	return t, nil
}

// StatementName returns the canonical per-statement trigger name:
// trg_<table>_<event-lower>_<timing-lower>_<i>.
func StatementName(table string, t *Trigger, i int) string {
	return fmt.Sprintf("trg_%s_%s_%s_%d", table, strings.ToLower(string(t.Event)), strings.ToLower(string(t.Timing)), i)
}

var (
	wsCollapse   = regexp.MustCompile(`\s+`)
	trailingSemi = regexp.MustCompile(`;+\s*$`)
)

// NormalizeStatementBody produces the stable-hashing form of a trigger
// statement body used by the snapshot view, never by DDL emission
// (spec.md §4.2): outer quotes/backticks stripped, whitespace collapsed,
// exactly one trailing semicolon, double quotes folded to single quotes.
//
// The differ also compares trigger bodies in this form when deciding
// whether a trigger changed (DESIGN.md Open Question #3); the CREATE
// TRIGGER DDL it emits carries each body as authored.
func NormalizeStatementBody(body string) string {
	s := strings.TrimSpace(body)
	s = stripOuterQuotes(s)
	s = wsCollapse.ReplaceAllString(s, " ")
	s = trailingSemi.ReplaceAllString(s, "")
	s = strings.TrimSpace(s) + ";"
	s = strings.ReplaceAll(s, `"`, "'")
	return s
}

func stripOuterQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	isQuote := func(b byte) bool { return b == '"' || b == '\'' || b == '`' }
	if isQuote(first) && first == last {
		return s[1 : len(s)-1]
	}
	return s
}

// NormalizeWhen strips a leading WHEN keyword (case-insensitive) and
// trailing semicolons, returning the bare predicate text (without the
// wrapping parentheses the dialect adapter adds on emission).
func NormalizeWhen(when string) string {
	s := strings.TrimSpace(when)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "when") {
		s = strings.TrimSpace(s[4:])
	}
	s = strings.TrimRight(s, "; \t\n")
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	return strings.TrimSpace(s)
}

func (t *Trigger) canonicalView() map[string]any {
	stmts := make([]map[string]any, 0, len(t.Statements))
	for _, s := range t.Statements {
		m := map[string]any{"body": NormalizeStatementBody(s.Body)}
		if w := NormalizeWhen(s.When); w != "" {
			m["when"] = w
		}
		stmts = append(stmts, m)
	}
	return map[string]any{
		"timing":     string(t.Timing),
		"event":      string(t.Event),
		"statements": stmts,
	}
}
