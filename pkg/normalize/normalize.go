// Package normalize converts raw, heterogeneous tally payloads into the
// canonical Snapshot record.
//
// Normalization is deliberately lenient: a field that cannot be parsed
// defaults to zero (or empty) rather than failing the snapshot, because
// upstream data quality is outside this system's control and must never
// block the audit trail. Strict validation is the rules engine's job.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// DepartmentCodes maps department names to their two-digit codes. Unknown
// names fall back to "00".
var DepartmentCodes = map[string]string{
	"Atlántida":         "01",
	"Choluteca":         "02",
	"Colón":             "03",
	"Comayagua":         "04",
	"Copán":             "05",
	"Cortés":            "06",
	"El Paraíso":        "07",
	"Francisco Morazán": "08",
	"Gracias a Dios":    "09",
	"Intibucá":          "10",
	"Islas de la Bahía": "11",
	"La Paz":            "12",
	"Lempira":           "13",
	"Ocotepeque":        "14",
	"Olancho":           "15",
	"Santa Bárbara":     "16",
	"Valle":             "17",
	"Yoro":              "18",
}

// SafeInt coerces an arbitrary raw value to a non-negative-friendly integer.
// Thousands separators are stripped and decimals truncated; anything
// unparseable yields the fallback 0.
func SafeInt(value any) int {
	if value == nil {
		return 0
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", value))
	s = strings.ReplaceAll(s, ",", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Options parameterizes one normalization call. The timestamp is supplied by
// the caller: Normalize performs no I/O and reads no clocks, so equal inputs
// always yield equal snapshots.
type Options struct {
	Election           string
	Year               int
	Source             string
	Scope              string
	DepartmentName     string
	DepartmentCode     string // resolved from DepartmentCodes when empty
	TimestampUTC       string
	CandidateCountHint int
	FieldMap           FieldMap
}

func (o *Options) fill() {
	if o.Election == "" {
		o.Election = "HN-PRESIDENTIAL"
	}
	if o.Year == 0 {
		o.Year = 2025
	}
	if o.Source == "" {
		o.Source = "CNE"
	}
	if o.Scope == "" {
		o.Scope = "DEPARTMENT"
	}
	if o.CandidateCountHint == 0 {
		o.CandidateCountHint = 10
	}
	if o.DepartmentCode == "" {
		if code, ok := DepartmentCodes[o.DepartmentName]; ok {
			o.DepartmentCode = code
		} else {
			o.DepartmentCode = "00"
		}
	}
	if o.FieldMap.Totals == nil && o.FieldMap.CandidateRoots == nil {
		o.FieldMap = DefaultFieldMap()
	}
}

// Normalize converts a raw payload into an immutable canonical Snapshot.
// It is a pure function of (raw, opts).
func Normalize(raw map[string]any, opts Options) model.Snapshot {
	opts.fill()
	fm := opts.FieldMap

	meta := model.Meta{
		Election:       opts.Election,
		Year:           opts.Year,
		Source:         opts.Source,
		Scope:          opts.Scope,
		DepartmentCode: opts.DepartmentCode,
		TimestampUTC:   opts.TimestampUTC,
	}

	totals := model.Totals{
		RegisteredVoters: SafeInt(FirstValue(raw, fm.paths("registered_voters"))),
		TotalVotes:       SafeInt(FirstValue(raw, fm.paths("total_votes"))),
		ValidVotes:       SafeInt(FirstValue(raw, fm.paths("valid_votes"))),
		NullVotes:        SafeInt(FirstValue(raw, fm.paths("null_votes"))),
		BlankVotes:       SafeInt(FirstValue(raw, fm.paths("blank_votes"))),
	}
	// Lenient total derivation only; cross-validation of an explicit total
	// against its components belongs to the consistency rule.
	if totals.TotalVotes == 0 && (totals.ValidVotes != 0 || totals.NullVotes != 0 || totals.BlankVotes != 0) {
		totals.TotalVotes = totals.ValidVotes + totals.NullVotes + totals.BlankVotes
	}

	candidates := extractCandidates(raw, opts.CandidateCountHint, fm.candidateRoots())

	return model.Snapshot{Meta: meta, Totals: totals, Candidates: candidates}
}

func (fm FieldMap) candidateRoots() []string {
	if len(fm.CandidateRoots) > 0 {
		return fm.CandidateRoots
	}
	return DefaultFieldMap().CandidateRoots
}

// candidatesRoot finds the raw candidate container. A root holding a nested
// "candidatos" key unwraps one level.
func candidatesRoot(raw map[string]any, roots []string) any {
	for _, key := range roots {
		value := Lookup(raw, key)
		if m, ok := value.(map[string]any); ok {
			if inner, ok := m["candidatos"]; ok {
				return inner
			}
			return m
		}
		if _, ok := value.([]any); ok {
			return value
		}
	}
	return nil
}

// extractCandidates supports three raw shapes: a list of candidate records,
// a dictionary keyed by slot index "1".."N", or a flat label→count map.
// Absent slots default to zero votes up to the hint.
func extractCandidates(raw map[string]any, hint int, roots []string) []model.CandidateResult {
	root := candidatesRoot(raw, roots)

	switch rc := root.(type) {
	case []any:
		out := make([]model.CandidateResult, 0, len(rc))
		for idx, item := range rc {
			entry, ok := item.(map[string]any)
			if !ok {
				out = append(out, model.CandidateResult{Slot: idx + 1})
				continue
			}
			slot := SafeInt(firstOf(entry, "posicion", "orden"))
			if slot == 0 {
				slot = idx + 1
			}
			out = append(out, model.CandidateResult{
				Slot:        slot,
				Votes:       SafeInt(firstOf(entry, "votos", "votes")),
				CandidateID: stringOf(entry["id"]),
				Name:        stringOf(firstOf(entry, "candidato", "nombre", "name")),
				Party:       stringOf(firstOf(entry, "partido", "party")),
			})
		}
		return out

	case map[string]any:
		if isSlotKeyed(rc) {
			count := hint
			for key := range rc {
				if n, err := strconv.Atoi(key); err == nil && n > count {
					count = n
				}
			}
			out := make([]model.CandidateResult, 0, count)
			for idx := 1; idx <= count; idx++ {
				value := rc[strconv.Itoa(idx)]
				if entry, ok := value.(map[string]any); ok {
					out = append(out, model.CandidateResult{
						Slot:        idx,
						Votes:       SafeInt(firstOf(entry, "votos", "votes")),
						CandidateID: stringOf(entry["id"]),
						Name:        stringOf(firstOf(entry, "candidato", "nombre", "name")),
						Party:       stringOf(firstOf(entry, "partido", "party")),
					})
					continue
				}
				out = append(out, model.CandidateResult{Slot: idx, Votes: SafeInt(value)})
			}
			return out
		}
		// Flat label→count mapping: each label becomes a synthetic candidate,
		// slots assigned in sorted label order for determinism.
		labels := make([]string, 0, len(rc))
		for label := range rc {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		out := make([]model.CandidateResult, 0, len(labels))
		for i, label := range labels {
			out = append(out, model.CandidateResult{
				Slot:        i + 1,
				Votes:       SafeInt(rc[label]),
				CandidateID: label,
				Name:        label,
			})
		}
		return out
	}

	out := make([]model.CandidateResult, 0, hint)
	for idx := 1; idx <= hint; idx++ {
		out = append(out, model.CandidateResult{Slot: idx})
	}
	return out
}

// isSlotKeyed reports whether every key of the map parses as a slot index.
func isSlotKeyed(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for key := range m {
		if _, err := strconv.Atoi(key); err != nil {
			return false
		}
	}
	return true
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
