// Package rules hosts the integrity-rules registry, the evaluation engine,
// and the statistical detectors that compare consecutive tally snapshots.
package rules

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// Candidate is a lenient per-candidate view used by the detectors.
type Candidate struct {
	ID    string
	Name  string
	Votes int
}

// Breakdown carries optional vote counters. Nil means the source payload did
// not expose the field; rules must skip checks they cannot ground.
type Breakdown struct {
	Valid      *int
	Null       *int
	Blank      *int
	Total      *int
	Registered *int
}

// Table is one polling table ("mesa") extracted from a raw payload.
type Table struct {
	Code      string
	Votes     map[string]int
	Breakdown Breakdown
}

// DeptEntry is a per-department slice of a national payload.
type DeptEntry struct {
	Name       string
	Candidates map[string]Candidate
}

// Record is the normalized-but-lenient view of one raw snapshot that rules
// evaluate. Unlike model.Snapshot it keeps optional fields optional and
// retains table- and department-level detail the canonical record drops.
type Record struct {
	Scope           string
	Timestamp       time.Time
	HasTimestamp    bool
	Candidates      map[string]Candidate
	Totals          Breakdown
	Tables          []Table
	Departments     []DeptEntry
	SheetsTotal     *int
	SheetsProcessed *int
}

// timestampLayouts accepted for raw snapshot timestamps, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseRecord builds a Record from a raw payload map. Extraction never
// fails: missing or malformed fields are simply absent from the Record.
func ParseRecord(raw map[string]any) *Record {
	r := &Record{
		Scope:      extractScope(raw),
		Candidates: extractCandidateVotes(raw),
		Totals:     extractBreakdown(raw),
	}
	if ts, ok := extractTimestamp(raw); ok {
		r.Timestamp = ts
		r.HasTimestamp = true
	}
	r.Tables = extractTables(raw)
	r.Departments = extractDepartments(raw)
	r.SheetsTotal, r.SheetsProcessed = extractSheetCounts(raw)
	return r
}

// RecordFromSnapshot adapts a canonical snapshot into the rules view. Table
// and department detail is unavailable in the canonical form.
func RecordFromSnapshot(s model.Snapshot) *Record {
	candidates := make(map[string]Candidate, len(s.Candidates))
	for _, c := range s.Candidates {
		key := c.CandidateID
		if key == "" {
			key = c.Name
		}
		if key == "" {
			key = strconv.Itoa(c.Slot)
		}
		candidates[key] = Candidate{ID: key, Name: c.Name, Votes: c.Votes}
	}
	r := &Record{
		Scope:      s.Meta.DepartmentCode,
		Candidates: candidates,
		Totals: Breakdown{
			Valid:      intPtr(s.Totals.ValidVotes),
			Null:       intPtr(s.Totals.NullVotes),
			Blank:      intPtr(s.Totals.BlankVotes),
			Total:      intPtr(s.Totals.TotalVotes),
			Registered: intPtr(s.Totals.RegisteredVoters),
		},
	}
	if ts, ok := parseTime(s.Meta.TimestampUTC); ok {
		r.Timestamp = ts
		r.HasTimestamp = true
	}
	return r
}

func intPtr(v int) *int { return &v }

// intOrNil converts a raw value to an integer, or nil when not possible.
// Thousands separators are stripped and decimals truncated.
func intOrNil(value any) *int {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case int:
		return intPtr(v)
	case int64:
		return intPtr(int(v))
	case float64:
		return intPtr(int(v))
	case bool:
		return nil
	}
	s := strings.TrimSpace(toString(value))
	s = strings.ReplaceAll(s, ",", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return intPtr(n)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return strings.TrimSpace(strconvFormat(t))
	}
}

func strconvFormat(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func subMap(raw map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if m, ok := raw[k].(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

func firstPresent(maps []map[string]any, keys ...string) any {
	for _, m := range maps {
		for _, k := range keys {
			if v, ok := m[k]; ok && v != nil {
				return v
			}
		}
	}
	return nil
}

func extractScope(raw map[string]any) string {
	meta := subMap(raw, "meta", "metadata")
	for _, v := range []any{raw["departamento"], raw["dep"], raw["department"], meta["department"], meta["department_code"]} {
		if s := toString(v); s != "" {
			return s
		}
	}
	return "NACIONAL"
}

func extractTimestamp(raw map[string]any) (time.Time, bool) {
	meta := subMap(raw, "meta", "metadata")
	rawTS := firstPresent([]map[string]any{raw, meta}, "timestamp", "timestamp_utc", "fecha")
	return parseTime(toString(rawTS))
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// extractCandidateVotes builds a candidate vote map from either a flat
// "resultados" label→count mapping or a candidate record list.
func extractCandidateVotes(raw map[string]any) map[string]Candidate {
	out := make(map[string]Candidate)

	if results, ok := raw["resultados"].(map[string]any); ok {
		for label, value := range results {
			votes := intOrNil(value)
			if votes == nil {
				continue
			}
			out[label] = Candidate{ID: label, Name: label, Votes: *votes}
		}
		return out
	}

	for _, entry := range candidateList(raw) {
		id := toString(firstPresent([]map[string]any{entry}, "candidate_id", "id", "nombre", "name", "candidato"))
		name := toString(firstPresent([]map[string]any{entry}, "name", "nombre", "candidato"))
		votes := intOrNil(firstPresent([]map[string]any{entry}, "votes", "votos"))
		if votes == nil {
			continue
		}
		key := id
		if key == "" {
			key = name
		}
		if key == "" {
			key = "unknown"
		}
		if name == "" {
			name = key
		}
		out[key] = Candidate{ID: key, Name: name, Votes: *votes}
	}
	return out
}

func candidateList(raw map[string]any) []map[string]any {
	for _, key := range []string{"candidates", "candidatos", "votos"} {
		list, ok := raw[key].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func extractBreakdown(raw map[string]any) Breakdown {
	totals := subMap(raw, "totals")
	vt := subMap(raw, "votos_totales")
	maps := []map[string]any{totals, vt, raw}
	return Breakdown{
		Valid:      intOrNil(firstPresent(maps, "valid_votes", "validos", "votos_validos")),
		Blank:      intOrNil(firstPresent(maps, "blank_votes", "blancos", "votos_blancos")),
		Null:       intOrNil(firstPresent(maps, "null_votes", "nulos", "votos_nulos")),
		Total:      intOrNil(firstPresent(maps, "total_votes", "total", "total_votos", "votos_emitidos")),
		Registered: intOrNil(firstPresent(maps, "registered_voters", "inscritos", "padron", "padron_electoral")),
	}
}

func extractSheetCounts(raw map[string]any) (total, processed *int) {
	actas := subMap(raw, "actas")
	totals := subMap(raw, "totals")
	maps := []map[string]any{actas, raw, totals}
	total = intOrNil(firstPresent(maps, "totales", "total", "actas_totales", "actas_total"))
	processed = intOrNil(firstPresent(maps, "divulgadas", "procesadas", "correctas", "actas_procesadas", "actas"))
	return total, processed
}

func extractTables(raw map[string]any) []Table {
	var items []map[string]any
	for _, key := range []string{"mesas", "tables", "actas"} {
		switch v := raw[key].(type) {
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					items = append(items, m)
				}
			}
		case map[string]any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					items = append(items, m)
				}
			}
		}
		if len(items) > 0 {
			break
		}
	}

	tables := make([]Table, 0, len(items))
	for _, m := range items {
		code := toString(firstPresent([]map[string]any{m}, "codigo", "codigo_mesa", "mesa_id", "id", "code"))
		votes := make(map[string]int)
		for key, c := range extractCandidateVotes(m) {
			votes[key] = c.Votes
		}
		totals := subMap(m, "totals")
		maps := []map[string]any{totals, m}
		tables = append(tables, Table{
			Code:  code,
			Votes: votes,
			Breakdown: Breakdown{
				Valid:      intOrNil(firstPresent(maps, "valid_votes", "validos", "votos_validos")),
				Blank:      intOrNil(firstPresent(maps, "blank_votes", "blancos", "votos_blancos")),
				Null:       intOrNil(firstPresent(maps, "null_votes", "nulos", "votos_nulos")),
				Total:      intOrNil(firstPresent(maps, "total_votes", "total", "votos_emitidos")),
				Registered: intOrNil(firstPresent(maps, "registered_voters", "inscritos", "padron")),
			},
		})
	}
	return tables
}

func extractDepartments(raw map[string]any) []DeptEntry {
	for _, key := range []string{"departments", "departamentos", "by_department", "por_departamento"} {
		switch v := raw[key].(type) {
		case []any:
			out := make([]DeptEntry, 0, len(v))
			for _, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				out = append(out, DeptEntry{
					Name:       extractScope(m),
					Candidates: extractCandidateVotes(m),
				})
			}
			return out
		case map[string]any:
			out := make([]DeptEntry, 0, len(v))
			for name, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				out = append(out, DeptEntry{
					Name:       name,
					Candidates: extractCandidateVotes(m),
				})
			}
			return out
		}
	}
	return nil
}

// topTwo returns the leader and runner-up by votes, false when fewer than
// two candidates are present. Ties break by key for determinism.
func topTwo(candidates map[string]Candidate) (leader, runner Candidate, ok bool) {
	if len(candidates) < 2 {
		return Candidate{}, Candidate{}, false
	}
	sorted := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		sorted = append(sorted, c)
	}
	sortCandidates(sorted)
	return sorted[0], sorted[1], true
}

func sortedCandidateKeys(candidates map[string]Candidate) []string {
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Votes != cs[j].Votes {
			return cs[i].Votes > cs[j].Votes
		}
		return cs[i].ID < cs[j].ID
	})
}
