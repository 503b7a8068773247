package formula

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog"

	"github.com/lblanes25/smartlookup/internal/config"
	"github.com/lblanes25/smartlookup/internal/loader"
	"github.com/lblanes25/smartlookup/internal/registry"
)

// FeedbackStatus classifies one feedback item.
type FeedbackStatus string

const (
	StatusFound     FeedbackStatus = "found"
	StatusMissing   FeedbackStatus = "missing"
	StatusMalformed FeedbackStatus = "malformed"
)

// Feedback is the validator's verdict on one column reference (or one
// malformed call). MatchStart/MatchEnd are byte offsets of the enclosing
// LOOKUP call for editor highlighting.
type Feedback struct {
	Column     string         `json:"column,omitempty"`
	Status     FeedbackStatus `json:"status"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
	Warning    string         `json:"warning,omitempty"`
	File       string         `json:"file,omitempty"`
	MatchStart int            `json:"match_start"`
	MatchEnd   int            `json:"match_end"`
}

// ValidationResult is the full verdict on a formula.
type ValidationResult struct {
	Formula   string     `json:"formula"`
	Feedback  []Feedback `json:"feedback"`
	HasErrors bool       `json:"has_errors"`
}

// Validator checks LOOKUP column references against the registry and, for
// unresolved ones, builds "did you mean" suggestions from similar
// registered columns or from probing not-yet-registered candidate files.
// It reads registry metadata only; validation never forces a lazy load.
type Validator struct {
	reg  *registry.Registry
	disc *loader.Discovery
	cfg  config.Suggest
	log  zerolog.Logger
}

// NewValidator creates a validator over the given registry and discovery.
func NewValidator(reg *registry.Registry, disc *loader.Discovery, cfg config.Suggest, log zerolog.Logger) *Validator {
	return &Validator{reg: reg, disc: disc, cfg: cfg, log: log}
}

// Validate extracts every LOOKUP call from the formula and reports one
// feedback item per column reference. HasErrors is set when any reference
// is missing or any call is malformed.
func (v *Validator) Validate(formula string) ValidationResult {
	result := ValidationResult{Formula: formula}

	for _, call := range ExtractCalls(formula) {
		if call.Malformed {
			result.Feedback = append(result.Feedback, Feedback{
				Status:     StatusMalformed,
				Message:    call.Reason,
				MatchStart: call.Start,
				MatchEnd:   call.End,
			})
			result.HasErrors = true
			continue
		}

		result.Feedback = append(result.Feedback, v.checkReturnColumn(call))
		if call.SearchColumn != "" && call.SearchColumn != call.ReturnColumn &&
			!v.reg.HasColumn(call.SearchColumn) {
			result.Feedback = append(result.Feedback, v.missingFeedback(call.SearchColumn, call))
		}
	}

	for _, f := range result.Feedback {
		if f.Status == StatusMissing {
			result.HasErrors = true
		}
	}
	return result
}

func (v *Validator) checkReturnColumn(call Call) Feedback {
	files := v.reg.FilesWithColumn(call.ReturnColumn)
	if len(files) == 0 {
		return v.missingFeedback(call.ReturnColumn, call)
	}

	first := files[0]
	alias := v.reg.AliasFor(first)
	rows := 0
	if entry, ok := v.reg.Entry(first); ok {
		rows = entry.RowCount
	}

	fb := Feedback{
		Column:     call.ReturnColumn,
		Status:     StatusFound,
		Message:    fmt.Sprintf("%q found in %s (%d rows)", call.ReturnColumn, alias, rows),
		File:       first,
		MatchStart: call.Start,
		MatchEnd:   call.End,
	}

	if call.SearchColumn != "" {
		common := v.reg.FilesWithColumns(call.SearchColumn, call.ReturnColumn)
		if len(common) > 0 {
			fb.Message = fmt.Sprintf("both %q and %q found in %s",
				call.SearchColumn, call.ReturnColumn, v.reg.AliasFor(common[0]))
			fb.File = common[0]
		} else if v.reg.HasColumn(call.SearchColumn) {
			fb.Warning = fmt.Sprintf("%q and %q are in different files",
				call.SearchColumn, call.ReturnColumn)
		}
	}
	return fb
}

func (v *Validator) missingFeedback(column string, call Call) Feedback {
	return Feedback{
		Column:     column,
		Status:     StatusMissing,
		Message:    fmt.Sprintf("%q not found in any loaded file", column),
		Suggestion: v.suggest(column),
		MatchStart: call.Start,
		MatchEnd:   call.End,
	}
}

// suggest builds the best available hint for a missing column: similar
// registered columns first, then probed candidate files, then a generic
// nudge.
func (v *Validator) suggest(column string) string {
	if similar := v.similarColumns(column); len(similar) > 0 {
		var parts []string
		for _, col := range similar {
			files := v.reg.FilesWithColumn(col)
			if len(files) > 2 {
				files = files[:2]
			}
			for _, f := range files {
				parts = append(parts, fmt.Sprintf("%q in %s", col, v.reg.AliasFor(f)))
			}
		}
		return fmt.Sprintf("Did you mean: %s?", strings.Join(parts, ", "))
	}

	if probed := v.probeSuggestions(column); len(probed) > 0 {
		if len(probed) > 2 {
			probed = probed[:2]
		}
		return "Suggestions: " + strings.Join(probed, "; ")
	}

	return fmt.Sprintf("Load a file containing a %q column", column)
}

// similarColumns ranks every registered column by similarity to the target
// and keeps those above the cutoff, best first.
func (v *Validator) similarColumns(column string) []string {
	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, name := range v.reg.AllColumns() {
		if name == column {
			continue
		}
		if s := v.similarity(column, name); s >= v.cfg.SimilarityCutoff {
			candidates = append(candidates, scored{name, s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > v.cfg.MaxSuggestions {
		candidates = candidates[:v.cfg.MaxSuggestions]
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// similarity scores two column names on both their raw lowercase forms and
// their normalized token forms, taking the better score. Normalization
// makes "EmployeeID" and "employee_ids" near-identical; see namenorm.go.
func (v *Validator) similarity(a, b string) float64 {
	raw, err := edlib.StringsSimilarity(strings.ToLower(a), strings.ToLower(b), edlib.JaroWinkler)
	if err != nil {
		raw = 0
	}
	norm, err := edlib.StringsSimilarity(NormalizeName(a), NormalizeName(b), edlib.JaroWinkler)
	if err != nil {
		norm = 0
	}
	if norm > raw {
		return float64(norm)
	}
	return float64(raw)
}

// probeSuggestions peeks candidate data files that are not registered yet
// for the column or a near-match of it.
func (v *Validator) probeSuggestions(column string) []string {
	var candidates []string
	for _, path := range v.disc.CandidateFiles(column) {
		if _, registered := v.reg.Entry(path); !registered {
			candidates = append(candidates, path)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	probed := v.disc.ProbeColumns(candidates)
	var suggestions []string
	for _, path := range candidates {
		cols, ok := probed[path]
		if !ok {
			continue
		}
		base := filepath.Base(path)
		matched := ""
		for _, col := range cols {
			if col == column {
				matched = col
				break
			}
		}
		if matched == "" {
			best := 0.0
			for _, col := range cols {
				if s := v.similarity(column, col); s >= v.cfg.SimilarityCutoff && s > best {
					best = s
					matched = col
				}
			}
		}
		if matched != "" {
			suggestions = append(suggestions, fmt.Sprintf("load %s (has %q)", base, matched))
		}
	}
	return suggestions
}
