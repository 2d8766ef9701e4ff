package transform

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// Stage names, in execution order.
const (
	StageColumnMapping = "columnMapping"
	StageFilter        = "filter"
	StageAddColumns    = "addColumns"
	StageSelectColumns = "selectColumns"
	StageConvertTypes  = "convertTypes"
	StageGroupBy       = "groupBy"
	StageScript        = "script"
)

// StageError reports the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageReport describes one stage that ran.
type StageReport struct {
	Stage   string
	RowsIn  int
	RowsOut int
	Detail  string
}

// Interpreter applies transform configurations to row-sets.
type Interpreter struct{}

// NewInterpreter returns an Interpreter.
func NewInterpreter() *Interpreter { return &Interpreter{} }

// Apply runs the configured stages over rows and returns the new row-set.
// The input row-set is not modified.
func (in *Interpreter) Apply(ctx context.Context, rows *connector.RowSet, cfg Config) (*connector.RowSet, error) {
	out, _, err := in.ApplyReport(ctx, rows, cfg)
	return out, err
}

// ApplyReport is Apply plus a report for every stage that ran.
func (in *Interpreter) ApplyReport(ctx context.Context, rows *connector.RowSet, cfg Config) (*connector.RowSet, []StageReport, error) {
	cur := cloneRowSet(rows)
	var reports []StageReport

	run := func(stage string, fn func(*connector.RowSet) (*connector.RowSet, string, error)) error {
		if err := ctx.Err(); err != nil {
			return stageFailure(stage, err)
		}
		start := time.Now()
		before := cur.Len()
		next, detail, err := fn(cur)
		if err != nil {
			return stageFailure(stage, err)
		}
		cur = next
		reports = append(reports, StageReport{Stage: stage, RowsIn: before, RowsOut: cur.Len(), Detail: detail})
		logger.Debug("transform stage applied",
			slog.String("stage", stage),
			slog.Int("rows_in", before),
			slog.Int("rows_out", cur.Len()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}

	if len(cfg.ColumnMapping) > 0 {
		if err := run(StageColumnMapping, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			return mapColumns(rs, cfg.ColumnMapping), "Columns renamed", nil
		}); err != nil {
			return nil, reports, err
		}
	}
	if len(cfg.Filter) > 0 || cfg.Where != "" {
		if err := run(StageFilter, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			out, err := filterRows(rs, cfg.Filter, cfg.Where)
			if err != nil {
				return nil, "", err
			}
			return out, fmt.Sprintf("Filtered %d → %d rows", rs.Len(), out.Len()), nil
		}); err != nil {
			return nil, reports, err
		}
	}
	if len(cfg.AddColumns) > 0 {
		if err := run(StageAddColumns, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			return addColumns(rs, cfg.AddColumns), fmt.Sprintf("Added %d columns", len(cfg.AddColumns)), nil
		}); err != nil {
			return nil, reports, err
		}
	}
	if cfg.SelectColumns != nil {
		if err := run(StageSelectColumns, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			return selectColumns(rs, cfg.SelectColumns), fmt.Sprintf("Selected %d columns", len(cfg.SelectColumns)), nil
		}); err != nil {
			return nil, reports, err
		}
	}
	if len(cfg.ConvertTypes) > 0 {
		if err := run(StageConvertTypes, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			return convertTypes(rs, cfg.ConvertTypes), "Types converted", nil
		}); err != nil {
			return nil, reports, err
		}
	}
	if cfg.grouping() {
		if err := run(StageGroupBy, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			out := groupRows(rs, cfg.GroupBy, cfg.Aggregations)
			return out, fmt.Sprintf("Grouped into %d records", out.Len()), nil
		}); err != nil {
			return nil, reports, err
		}
	}
	if strings.TrimSpace(cfg.Script) != "" {
		if err := run(StageScript, func(rs *connector.RowSet) (*connector.RowSet, string, error) {
			out, err := runScript(ctx, rs, cfg.Script)
			if err != nil {
				return nil, "", err
			}
			return out, fmt.Sprintf("Script kept %d of %d records", out.Len(), rs.Len()), nil
		}); err != nil {
			return nil, reports, err
		}
	}
	return cur, reports, nil
}

func stageFailure(stage string, err error) error {
	return errhandling.Transform("transform.apply", "transformation failed", &StageError{Stage: stage, Err: err})
}

func cloneRowSet(rows *connector.RowSet) *connector.RowSet {
	out := &connector.RowSet{Columns: []string{}, Records: []connector.Record{}}
	if rows == nil {
		return out
	}
	out.Columns = append(out.Columns, rows.Columns...)
	out.Records = make([]connector.Record, len(rows.Records))
	for i, r := range rows.Records {
		out.Records[i] = connector.CloneMap(r)
	}
	return out
}

// mapColumns renames columns in place. When a new name collides with an
// unmentioned column, the unmentioned column's value wins.
func mapColumns(rs *connector.RowSet, mapping map[string]string) *connector.RowSet {
	out := &connector.RowSet{Records: make([]connector.Record, 0, rs.Len())}
	seen := make(map[string]bool, len(rs.Columns))
	for _, c := range rs.Columns {
		name := c
		if to, ok := mapping[c]; ok {
			name = to
		}
		if !seen[name] {
			seen[name] = true
			out.Columns = append(out.Columns, name)
		}
	}
	for _, rec := range rs.Records {
		next := make(connector.Record, len(rec))
		for from, to := range mapping {
			if v, ok := rec[from]; ok {
				next[to] = v
			}
		}
		for k, v := range rec {
			if _, mapped := mapping[k]; !mapped {
				next[k] = v
			}
		}
		out.Records = append(out.Records, next)
	}
	return out
}

func filterRows(rs *connector.RowSet, conds map[string]Condition, where string) (*connector.RowSet, error) {
	var program *vm.Program
	if where != "" {
		p, err := expr.Compile(where, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling where expression: %w", err)
		}
		program = p
	}

	out := &connector.RowSet{Columns: rs.Columns, Records: make([]connector.Record, 0, rs.Len())}
	for i, rec := range rs.Records {
		if !matchesAll(rec, conds) {
			continue
		}
		if program != nil {
			res, err := expr.Run(program, map[string]any(rec))
			if err != nil {
				return nil, fmt.Errorf("evaluating where expression at record %d: %w", i, err)
			}
			if ok, _ := res.(bool); !ok {
				continue
			}
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func matchesAll(rec connector.Record, conds map[string]Condition) bool {
	for col, c := range conds {
		v := rec[col]
		if c.Equals != nil && !looseEqual(v, c.Equals) {
			return false
		}
		if c.NotEquals != nil && looseEqual(v, c.NotEquals) {
			return false
		}
		if c.GreaterThan != nil {
			n, ok := leadingFloat(v)
			if !ok || !(n > *c.GreaterThan) {
				return false
			}
		}
		if c.LessThan != nil {
			n, ok := leadingFloat(v)
			if !ok || !(n < *c.LessThan) {
				return false
			}
		}
		if c.Contains != nil && !strings.Contains(toString(v), *c.Contains) {
			return false
		}
		if c.NotNull && isBlank(v) {
			return false
		}
	}
	return true
}

type derivedColumn struct {
	AddColumn
	tree     node
	parseErr error
}

func addColumns(rs *connector.RowSet, defs []AddColumn) *connector.RowSet {
	cols := make([]derivedColumn, len(defs))
	for i, d := range defs {
		cols[i] = derivedColumn{AddColumn: d}
		if d.Type == "number" {
			cols[i].tree, cols[i].parseErr = parseArithmetic(d.Expression)
		}
	}

	out := &connector.RowSet{Columns: slices.Clone(rs.Columns), Records: rs.Records}
	for _, c := range cols {
		if !slices.Contains(out.Columns, c.Name) {
			out.Columns = append(out.Columns, c.Name)
		}
		for _, rec := range out.Records {
			rec[c.Name] = c.value(rec)
		}
	}
	return out
}

// value computes the column for one record. Number columns whose substituted
// text is plain arithmetic are evaluated, and any failure there (a blank or
// non-numeric operand included) yields nil. Other text is stored as is.
func (c derivedColumn) value(rec connector.Record) any {
	text := substitute(c.Expression, rec)
	if c.Type != "number" || !safeArithmetic.MatchString(text) {
		return text
	}
	if c.parseErr != nil {
		return nil
	}
	v, err := c.tree.eval(rec)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

// selectColumns keeps the named columns in their current order.
func selectColumns(rs *connector.RowSet, names []string) *connector.RowSet {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := &connector.RowSet{Columns: []string{}, Records: make([]connector.Record, 0, rs.Len())}
	for _, c := range rs.Columns {
		if want[c] {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, rec := range rs.Records {
		next := make(connector.Record, len(out.Columns))
		for _, c := range out.Columns {
			if v, ok := rec[c]; ok {
				next[c] = v
			}
		}
		out.Records = append(out.Records, next)
	}
	return out
}

func convertTypes(rs *connector.RowSet, targets map[string]string) *connector.RowSet {
	for col, target := range targets {
		if !conversionTargets[target] {
			logger.Debug("unknown conversion target ignored", slog.String("column", col), slog.String("target", target))
		}
	}
	for _, rec := range rs.Records {
		for col, target := range targets {
			v, ok := rec[col]
			if !ok {
				continue
			}
			switch target {
			case "number":
				rec[col] = numberOrZero(v)
			case "string":
				rec[col] = toString(v)
			case "boolean":
				rec[col] = toBool(v)
			case "uppercase":
				rec[col] = strings.ToUpper(toString(v))
			case "lowercase":
				rec[col] = strings.ToLower(toString(v))
			}
		}
	}
	return rs
}

const groupKeySep = "\x1f"

type group struct {
	first connector.Record
	rows  []connector.Record
}

// groupRows partitions rows by the grouping columns and emits one record per
// group in first-seen order.
func groupRows(rs *connector.RowSet, by []string, aggs []Aggregation) *connector.RowSet {
	var order []string
	groups := map[string]*group{}
	for _, rec := range rs.Records {
		parts := make([]string, len(by))
		for i, col := range by {
			parts[i] = toString(rec[col])
		}
		key := strings.Join(parts, groupKeySep)
		g, ok := groups[key]
		if !ok {
			g = &group{first: rec}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, rec)
	}

	out := &connector.RowSet{Columns: slices.Clone(by), Records: make([]connector.Record, 0, len(order))}
	for _, a := range aggs {
		if aggregationOps[a.Operation] && !slices.Contains(out.Columns, a.OutputName()) {
			out.Columns = append(out.Columns, a.OutputName())
		}
	}
	for _, key := range order {
		g := groups[key]
		rec := make(connector.Record, len(out.Columns))
		for _, col := range by {
			rec[col] = g.first[col]
		}
		for _, a := range aggs {
			if v, ok := aggregate(g.rows, a); ok {
				rec[a.OutputName()] = v
			}
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

func aggregate(rows []connector.Record, a Aggregation) (any, bool) {
	vals := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = numberOrZero(r[a.Column])
	}
	switch a.Operation {
	case "count":
		return len(rows), true
	case "sum":
		var s float64
		for _, v := range vals {
			s += v
		}
		return s, true
	case "avg":
		var s float64
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals)), true
	case "min":
		return slices.Min(vals), true
	case "max":
		return slices.Max(vals), true
	default:
		return nil, false
	}
}

// runScript passes every record through the script's transform function.
// Records for which it returns null or undefined are dropped. New keys are
// appended to the column order, sorted.
func runScript(ctx context.Context, rs *connector.RowSet, src string) (*connector.RowSet, error) {
	runner, err := newScriptRunner(src)
	if err != nil {
		return nil, err
	}
	out := &connector.RowSet{Records: make([]connector.Record, 0, rs.Len())}
	for i, rec := range rs.Records {
		next, keep, err := runner.call(ctx, rec, i)
		if err != nil {
			return nil, err
		}
		if keep {
			out.Records = append(out.Records, next)
		}
	}
	out.Columns = scriptColumns(rs.Columns, out.Records)
	return out, nil
}

func scriptColumns(prev []string, records []connector.Record) []string {
	present := map[string]bool{}
	for _, r := range records {
		for k := range r {
			present[k] = true
		}
	}
	cols := []string{}
	known := map[string]bool{}
	for _, c := range prev {
		known[c] = true
		if present[c] || len(records) == 0 {
			cols = append(cols, c)
		}
	}
	var extra []string
	for k := range present {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
