// pkg/engine/select.go
//
// The SELECT pipeline: resolve sources and joins into a combined row
// set, filter by WHERE, group and aggregate, filter by HAVING, sort,
// page, and project. Grouped aggregates are precomputed and bound into
// each representative row under eval.CanonicalAggKey so that the same
// evaluator pass used everywhere else resolves HAVING/ORDER BY/the
// SELECT list's aggregate calls via Row lookup rather than a special
// code path.
package engine

import (
	"context"
	"sort"
	"strings"

	"quill/pkg/eval"
	"quill/pkg/sql/lexer"
	"quill/pkg/sql/parser"
	"quill/pkg/store"
	"quill/pkg/value"
)

// joinedRow is one row of the combined source set: its eval.Row
// bindings (bare and qualified column names).
type joinedRow struct {
	row eval.Row
}

func (e *Engine) execSelect(s *parser.SelectStmt) (*Result, error) {
	return e.execSelectContext(context.Background(), s)
}

// execSelectContext runs the SELECT pipeline, checking ctx for
// cancellation between each row's WHERE evaluation and again between each
// output row's projection, so a long-running SELECT over a large result
// set can actually be interrupted mid-computation rather than only
// before it starts or after every row has already been computed.
func (e *Engine) execSelectContext(ctx context.Context, s *parser.SelectStmt) (*Result, error) {
	rows, err := e.resolveSources(s)
	if err != nil {
		return nil, err
	}

	filtered := make([]joinedRow, 0, len(rows))
	for _, jr := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evalCtx := e.newCtx()
		evalCtx.Row = jr.row
		if s.Where.Empty() {
			filtered = append(filtered, jr)
			continue
		}
		hit, err := eval.EvalBool(s.Where, evalCtx)
		if err != nil {
			return nil, err
		}
		if hit {
			filtered = append(filtered, jr)
		}
	}

	groups, err := e.groupRows(s, filtered)
	if err != nil {
		return nil, err
	}

	if !s.Having.Empty() {
		kept := groups[:0]
		for _, g := range groups {
			ctx := e.newCtx()
			ctx.Row = g.row
			hit, err := eval.EvalBool(s.Having, ctx)
			if err != nil {
				return nil, err
			}
			if hit {
				kept = append(kept, g)
			}
		}
		groups = kept
	}

	if len(s.OrderBy) > 0 {
		var sortErr error
		sort.SliceStable(groups, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			for _, ord := range s.OrderBy {
				ctxI, ctxJ := e.newCtx(), e.newCtx()
				ctxI.Row, ctxJ.Row = groups[i].row, groups[j].row
				vi, err := eval.Eval(ord.Expr, ctxI)
				if err != nil {
					sortErr = err
					return false
				}
				vj, err := eval.Eval(ord.Expr, ctxJ)
				if err != nil {
					sortErr = err
					return false
				}
				cmp := value.Compare(vi, vj)
				if cmp == 0 {
					continue
				}
				if ord.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	groups, err = applyOffsetLimit(e, s, groups)
	if err != nil {
		return nil, err
	}

	cols, outRows, err := e.projectContext(ctx, s, groups)
	if err != nil {
		return nil, err
	}

	if s.Distinct {
		outRows = dedupeRows(outRows)
	}

	return &Result{Columns: cols, Rows: outRows}, nil
}

// resolveSources builds the cross/join product of every source named in
// the FROM clause. With no FROM clause, a single empty row lets SELECT
// 1+1-style constant queries evaluate.
func (e *Engine) resolveSources(s *parser.SelectStmt) ([]joinedRow, error) {
	if len(s.Sources) == 0 {
		return []joinedRow{{row: eval.NewRow()}}, nil
	}

	var rows []joinedRow
	for i, src := range s.Sources {
		tbl, ok := e.DB.Table(src.Table)
		if !ok {
			return nil, engineErrorf("table %q does not exist", src.Table)
		}
		next := make([]joinedRow, 0, tbl.RowCount())
		tbl.Rows(func(_ int, r []value.Value) bool {
			jr := eval.NewRow()
			bindTableRow(jr, tbl, src.Alias, r)
			next = append(next, joinedRow{row: jr})
			return true
		})
		if i == 0 {
			rows = next
			continue
		}
		merged := make([]joinedRow, 0, len(rows)*len(next))
		for _, l := range rows {
			for _, r := range next {
				combined := l.row.Clone()
				combined.Merge(r.row)
				merged = append(merged, joinedRow{row: combined})
			}
		}
		rows = merged
	}

	for _, jc := range s.Joins {
		tbl, ok := e.DB.Table(jc.Table)
		if !ok {
			return nil, engineErrorf("table %q does not exist", jc.Table)
		}
		var rightRows [][]value.Value
		tbl.Rows(func(_ int, r []value.Value) bool {
			rightRows = append(rightRows, r)
			return true
		})

		merged, err := e.applyJoin(rows, tbl, jc, rightRows)
		if err != nil {
			return nil, err
		}
		rows = merged
	}
	return rows, nil
}

func bindTableRow(dst eval.Row, tbl *store.Table, alias string, r []value.Value) {
	name := tbl.Name
	for i, c := range tbl.Columns() {
		dst.Set(c.Name, r[i])
		dst.Set(name+"."+c.Name, r[i])
		if alias != "" {
			dst.Set(alias+"."+c.Name, r[i])
		}
	}
}

func (e *Engine) applyJoin(left []joinedRow, tbl *store.Table, jc parser.JoinClause, rightRows [][]value.Value) ([]joinedRow, error) {
	var out []joinedRow
	for _, l := range left {
		matchedAny := false
		for _, r := range rightRows {
			combined := l.row.Clone()
			bindTableRow(combined, tbl, jc.Alias, r)

			if jc.Kind == parser.JoinCross {
				out = append(out, joinedRow{row: combined})
				matchedAny = true
				continue
			}
			ctx := e.newCtx()
			ctx.Row = combined
			hit, err := eval.EvalBool(jc.On, ctx)
			if err != nil {
				return nil, err
			}
			if hit {
				out = append(out, joinedRow{row: combined})
				matchedAny = true
			}
		}
		if !matchedAny && (jc.Kind == parser.JoinLeft || jc.Kind == parser.JoinFull) {
			combined := l.row.Clone()
			bindNullTableRow(combined, tbl, jc.Alias)
			out = append(out, joinedRow{row: combined})
		}
	}

	if jc.Kind == parser.JoinRight || jc.Kind == parser.JoinFull {
		for _, r := range rightRows {
			matched := false
			for _, o := range out {
				same := true
				for i, c := range tbl.Columns() {
					v, _ := o.row.Get(tbl.Name + "." + c.Name)
					if !value.Equal(v, r[i]) {
						same = false
						break
					}
				}
				if same {
					matched = true
					break
				}
			}
			if !matched {
				combined := eval.NewRow()
				bindTableRow(combined, tbl, jc.Alias, r)
				out = append(out, joinedRow{row: combined})
			}
		}
	}
	return out, nil
}

func bindNullTableRow(dst eval.Row, tbl *store.Table, alias string) {
	name := tbl.Name
	for _, c := range tbl.Columns() {
		dst.Set(c.Name, value.Null())
		dst.Set(name+"."+c.Name, value.Null())
		if alias != "" {
			dst.Set(alias+"."+c.Name, value.Null())
		}
	}
}

// groupRows partitions rows by GROUP BY key (or treats the whole result
// as a single group when aggregates appear in the SELECT list without an
// explicit GROUP BY), precomputing every aggregate call's value and
// binding it into each group's representative row under its
// eval.CanonicalAggKey.
func (e *Engine) groupRows(s *parser.SelectStmt, rows []joinedRow) ([]joinedRow, error) {
	hasAggregates := false
	for _, item := range s.Items {
		if item.IsAggregate {
			hasAggregates = true
			break
		}
	}
	if len(s.GroupBy) == 0 && !hasAggregates {
		return rows, nil
	}

	type bucket struct {
		rep  eval.Row
		rows []joinedRow
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, jr := range rows {
		key, err := e.groupKey(s.GroupBy, jr.row)
		if err != nil {
			return nil, err
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{rep: jr.row.Clone()}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows = append(b.rows, jr)
	}
	if len(buckets) == 0 {
		// No input rows: COUNT(*) etc. still produce one row over an
		// empty set when there's no GROUP BY.
		if len(s.GroupBy) == 0 {
			buckets[""] = &bucket{rep: eval.NewRow()}
			order = append(order, "")
		}
	}

	out := make([]joinedRow, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		for _, item := range s.Items {
			if !item.IsAggregate {
				continue
			}
			if err := e.computeAggregate(item, b.rows, b.rep); err != nil {
				return nil, err
			}
		}
		out = append(out, joinedRow{row: b.rep})
	}
	return out, nil
}

func (e *Engine) groupKey(groupBy []parser.Expr, row eval.Row) (string, error) {
	if len(groupBy) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, expr := range groupBy {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		ctx := e.newCtx()
		ctx.Row = row
		v, err := eval.Eval(expr, ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(v.Kind().String())
		b.WriteByte(':')
		b.WriteString(v.AsText())
	}
	return b.String(), nil
}

func (e *Engine) computeAggregate(item parser.SelectItem, rows []joinedRow, rep eval.Row) error {
	key := eval.CanonicalAggKey(item.AggFunc, item.AggDistinct, item.AggArgs)
	if _, ok := rep.Get(key); ok {
		return nil
	}
	isStar := len(item.AggArgs) == 1 && item.AggArgs[0].Type == lexer.STAR
	agg := eval.NewAggregate(item.AggFunc, item.AggDistinct, isStar)
	agg.Init()
	for _, jr := range rows {
		if isStar {
			agg.Step(value.NewBool(true))
			continue
		}
		ctx := e.newCtx()
		ctx.Row = jr.row
		v, err := eval.Eval(item.AggArgs, ctx)
		if err != nil {
			return err
		}
		agg.Step(v)
	}
	rep.Set(key, agg.Finalize())
	return nil
}

func applyOffsetLimit(e *Engine, s *parser.SelectStmt, rows []joinedRow) ([]joinedRow, error) {
	start := 0
	if !s.Offset.Empty() {
		ctx := e.newCtx()
		v, err := eval.Eval(s.Offset, ctx)
		if err != nil {
			return nil, err
		}
		n, err := v.AsInt()
		if err != nil {
			return nil, err
		}
		start = int(n)
	}
	if start < 0 {
		start = 0
	}
	if start > len(rows) {
		start = len(rows)
	}
	rows = rows[start:]

	limitExpr := s.Limit
	if limitExpr.Empty() {
		limitExpr = s.Top
	}
	if limitExpr.Empty() {
		return rows, nil
	}
	ctx := e.newCtx()
	v, err := eval.Eval(limitExpr, ctx)
	if err != nil {
		return nil, err
	}
	n, err := v.AsInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if int(n) < len(rows) {
		rows = rows[:n]
	}
	return rows, nil
}

// project evaluates the SELECT list against each grouped/filtered row,
// expanding '*' and 'alias.*' into every bound column.
func (e *Engine) project(s *parser.SelectStmt, rows []joinedRow) ([]string, [][]value.Value, error) {
	return e.projectContext(context.Background(), s, rows)
}

// projectContext is project with a per-output-row cancellation check, so
// projecting a large result set can be interrupted between rows instead
// of only once the whole row set has already been materialized.
func (e *Engine) projectContext(ctx context.Context, s *parser.SelectStmt, rows []joinedRow) ([]string, [][]value.Value, error) {
	refs := e.sourceRefs(s)
	cols := e.projectedColumns(s, refs)

	out := make([][]value.Value, 0, len(rows))
	for _, jr := range rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		evalCtx := e.newCtx()
		evalCtx.Row = jr.row
		vals := make([]value.Value, 0, len(cols))
		for _, item := range s.Items {
			if item.Star {
				vals = append(vals, expandStar(jr.row, refs, item.StarAlias)...)
				continue
			}
			v, err := eval.Eval(item.Expr, evalCtx)
			if err != nil {
				return nil, nil, err
			}
			vals = append(vals, v)
		}
		out = append(out, vals)
	}
	return cols, out, nil
}

// sourceRef pairs a FROM/JOIN table with the alias (or bare table name,
// when unaliased) its rows are bound under in eval.Row.
type sourceRef struct {
	alias string
	tbl   *store.Table
}

// sourceRefs lists every FROM/JOIN table in declared order, so '*'/
// 'alias.*' expansion can resolve against the tables' declared column
// order instead of a row's (unordered) map bindings.
func (e *Engine) sourceRefs(s *parser.SelectStmt) []sourceRef {
	var refs []sourceRef
	for _, src := range s.Sources {
		tbl, ok := e.DB.Table(src.Table)
		if !ok {
			continue
		}
		alias := src.Alias
		if alias == "" {
			alias = tbl.Name
		}
		refs = append(refs, sourceRef{alias: alias, tbl: tbl})
	}
	for _, jc := range s.Joins {
		tbl, ok := e.DB.Table(jc.Table)
		if !ok {
			continue
		}
		alias := jc.Alias
		if alias == "" {
			alias = tbl.Name
		}
		refs = append(refs, sourceRef{alias: alias, tbl: tbl})
	}
	return refs
}

func (e *Engine) projectedColumns(s *parser.SelectStmt, refs []sourceRef) []string {
	var cols []string
	for _, item := range s.Items {
		if item.Star {
			cols = append(cols, starColumnNames(refs, item.StarAlias)...)
			continue
		}
		if item.Alias != "" {
			cols = append(cols, item.Alias)
			continue
		}
		cols = append(cols, displayName(item))
	}
	return cols
}

// displayName derives an unaliased select item's output header: a bare
// identifier for a single-token column reference, the unqualified
// column name for an "alias.column" reference, FUNC(argsText) for an
// unaliased aggregate, and the rendered expression text otherwise.
func displayName(item parser.SelectItem) string {
	if item.IsAggregate {
		return item.AggFunc + "(" + parser.RenderExpr(item.AggArgs) + ")"
	}
	switch len(item.Expr) {
	case 1:
		if item.Expr[0].Type == lexer.IDENT {
			return item.Expr[0].Literal
		}
	case 3:
		if item.Expr[0].Type == lexer.IDENT && item.Expr[1].Type == lexer.DOT && item.Expr[2].Type == lexer.IDENT {
			return item.Expr[2].Literal
		}
	}
	return parser.RenderExpr(item.Expr)
}

// starColumnNames and expandStar resolve '*'/'alias.*' against each
// source table's declared Columns() order, filtered to the named table
// when alias is set. Resolving against the table schema rather than a
// sample row also means an empty result set (or an empty table) still
// reports the table's full header.
func starColumnNames(refs []sourceRef, alias string) []string {
	var names []string
	for _, ref := range refs {
		if alias != "" && alias != ref.alias && alias != ref.tbl.Name {
			continue
		}
		for _, c := range ref.tbl.Columns() {
			names = append(names, c.Name)
		}
	}
	return names
}

func expandStar(row eval.Row, refs []sourceRef, alias string) []value.Value {
	var vals []value.Value
	for _, ref := range refs {
		if alias != "" && alias != ref.alias && alias != ref.tbl.Name {
			continue
		}
		for _, c := range ref.tbl.Columns() {
			v, _ := row.Get(ref.alias + "." + c.Name)
			vals = append(vals, v)
		}
	}
	return vals
}

func dedupeRows(rows [][]value.Value) [][]value.Value {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		var b strings.Builder
		for _, v := range r {
			b.WriteString(v.Kind().String())
			b.WriteByte(':')
			b.WriteString(v.AsText())
			b.WriteByte('\x1f')
		}
		key := b.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
