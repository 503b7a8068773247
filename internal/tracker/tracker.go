// Package tracker records lookup invocations for downstream audit reports.
// Tracking is off by default; the disabled path does no work and allocates
// nothing, since it sits on the per-row hot path.
package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/lblanes25/smartlookup/internal/types"
)

// Operation is one recorded lookup: what was asked, where it resolved,
// whether it came from cache, and the row the caller was validating.
type Operation struct {
	ID           uuid.UUID
	RowIndex     int // -1 when the caller set no row context
	LookupValue  types.Value
	SearchColumn string
	ReturnColumn string
	SourceFile   string
	SourceAlias  string
	Result       types.Value
	Success      bool
	FromCache    bool
	Error        string
	Timestamp    time.Time
}

// Tracker accumulates operations while enabled.
type Tracker struct {
	enabled    bool
	currentRow int
	ops        []Operation
}

// New creates a disabled tracker.
func New() *Tracker {
	return &Tracker{currentRow: -1}
}

// Enable starts a fresh recording session, discarding prior operations.
func (t *Tracker) Enable() {
	t.enabled = true
	t.ops = nil
}

// Disable stops recording. Already-recorded operations stay readable.
func (t *Tracker) Disable() {
	t.enabled = false
}

// Enabled reports whether operations are being recorded. Callers check this
// before building an Operation so the disabled path stays allocation-free.
func (t *Tracker) Enabled() bool { return t.enabled }

// SetCurrentRow sets the row context attached to subsequent operations.
func (t *Tracker) SetCurrentRow(row int) {
	t.currentRow = row
}

// CurrentRow returns the row context, -1 when unset.
func (t *Tracker) CurrentRow() int { return t.currentRow }

// Record appends one operation, stamping id, row context and time.
func (t *Tracker) Record(op Operation) {
	if !t.enabled {
		return
	}
	op.ID = uuid.New()
	op.RowIndex = t.currentRow
	op.Timestamp = time.Now()
	t.ops = append(t.ops, op)
}

// Operations returns a copy of everything recorded so far.
func (t *Tracker) Operations() []Operation {
	out := make([]Operation, len(t.ops))
	copy(out, t.ops)
	return out
}

// Clear drops recorded operations and resets the row context.
func (t *Tracker) Clear() {
	t.ops = nil
	t.currentRow = -1
}
