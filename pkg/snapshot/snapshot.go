// Package snapshot implements the external, JSON-shaped serialization
// format used to persist and reload a database: tables (with coarse
// column type names and row data) and trigger source text. User
// functions and add-ins are host-process state and are never persisted.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quill/pkg/engine"
	"quill/pkg/sql/parser"
	"quill/pkg/store"
	"quill/pkg/value"
)

// ErrSnapshot is the sentinel wrapped by every malformed-snapshot error.
var ErrSnapshot = fmt.Errorf("snapshot error")

func snapshotErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrSnapshot}, args...)...)
}

// doc is the on-disk/on-wire shape described by the engine's external
// interface: tables with their columns and rows, plus re-executable
// trigger source text.
type doc struct {
	Tables   []tableDoc   `json:"tables"`
	Triggers []triggerDoc `json:"triggers"`
}

type columnDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type tableDoc struct {
	Name    string          `json:"name"`
	Columns []columnDoc     `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

type triggerDoc struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// coarseTypeName maps a Column's internal tag to the snapshot's coarse
// type vocabulary.
func coarseTypeName(t value.ColType) string {
	switch t {
	case value.ColInt:
		return "Int64"
	case value.ColFloat:
		return "Double"
	case value.ColBool:
		return "Boolean"
	case value.ColTimestamp:
		return "DateTime"
	case value.ColUuid:
		return "Guid"
	default:
		return "String"
	}
}

// colTypeFromName is coarseTypeName's inverse; any name it doesn't
// recognize is treated as String.
func colTypeFromName(name string) value.ColType {
	switch name {
	case "Int64":
		return value.ColInt
	case "Double":
		return value.ColFloat
	case "Boolean":
		return value.ColBool
	case "DateTime":
		return value.ColTimestamp
	case "Guid":
		return value.ColUuid
	default:
		return value.ColText
	}
}

// ToSnapshot renders e's tables and triggers as the JSON snapshot text.
func ToSnapshot(e *engine.Engine, pretty bool) (string, error) {
	d := doc{}
	for _, name := range e.DB.TableNames() {
		tbl, _ := e.DB.Table(name)
		td := tableDoc{Name: tbl.Name}
		for _, c := range tbl.Columns() {
			td.Columns = append(td.Columns, columnDoc{Name: c.Name, Type: coarseTypeName(c.Type)})
		}
		tbl.Rows(func(_ int, row []value.Value) bool {
			cells := make([]interface{}, len(row))
			for i, v := range row {
				cells[i] = cellToJSON(v)
			}
			td.Rows = append(td.Rows, cells)
			return true
		})
		d.Tables = append(d.Tables, td)
	}

	for _, name := range triggerNames(e.DB) {
		trg, _ := e.DB.Trigger(name)
		d.Triggers = append(d.Triggers, triggerDoc{Name: trg.Name, SQL: trg.SourceText})
	}

	var (
		out []byte
		err error
	)
	if pretty {
		out, err = json.MarshalIndent(d, "", "  ")
	} else {
		out, err = json.Marshal(d)
	}
	if err != nil {
		return "", snapshotErrorf("%v", err)
	}
	return string(out), nil
}

// triggerNames is not directly exposed by store.Database's public
// surface (only lookup-by-name and filter-by-table/timing/event are),
// so ToSnapshot walks every table's triggers for every timing/event
// combination to recover the full registered set without duplicates.
func triggerNames(db *store.Database) []string {
	seen := make(map[string]bool)
	var names []string
	timings := []parser.TriggerTiming{parser.TriggerBefore, parser.TriggerAfter}
	events := []parser.TriggerEvent{parser.TriggerInsert, parser.TriggerUpdate, parser.TriggerDelete}
	for _, tname := range db.TableNames() {
		for _, t := range timings {
			for _, ev := range events {
				for _, trg := range db.TriggersFor(tname, t, ev) {
					if !seen[trg.Name] {
						seen[trg.Name] = true
						names = append(names, trg.Name)
					}
				}
			}
		}
	}
	return names
}

func cellToJSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool()
	case value.KindInt:
		return v.Int()
	case value.KindFloat:
		return v.Float()
	case value.KindTimestamp:
		return v.Timestamp().UTC().Format(time.RFC3339Nano)
	default:
		return v.AsText()
	}
}

// FromSnapshot builds a fresh engine from snapshot text, re-executing
// every stored CREATE TRIGGER statement to rebuild its parsed body.
func FromSnapshot(text string) (*engine.Engine, error) {
	var d doc
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, snapshotErrorf("malformed snapshot: %v", err)
	}
	e := engine.New()
	if err := applyDoc(e, d, true); err != nil {
		return nil, err
	}
	return e, nil
}

// MergeSnapshot loads snapshot text into an existing engine. Each
// incoming table/trigger is inserted only if its name is absent, unless
// overwrite is true, in which case a same-named existing table/trigger
// is dropped and replaced.
func MergeSnapshot(e *engine.Engine, text string, overwrite bool) error {
	var d doc
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return snapshotErrorf("malformed snapshot: %v", err)
	}
	return applyDoc(e, d, overwrite)
}

func applyDoc(e *engine.Engine, d doc, overwrite bool) error {
	for _, td := range d.Tables {
		if _, exists := e.DB.Table(td.Name); exists {
			if !overwrite {
				continue
			}
			e.DB.DropTable(td.Name)
		}
		cols := make([]value.Column, len(td.Columns))
		for i, cd := range td.Columns {
			cols[i] = value.Column{Name: cd.Name, Type: colTypeFromName(cd.Type)}
		}
		tbl := store.NewTable(td.Name, cols)
		for _, rawRow := range td.Rows {
			if len(rawRow) != len(cols) {
				return snapshotErrorf("table %q: row has %d cells, expected %d", td.Name, len(rawRow), len(cols))
			}
			row := make([]value.Value, len(cols))
			for i, raw := range rawRow {
				row[i] = cellFromJSON(raw, cols[i].Type)
			}
			tbl.InsertRow(row)
		}
		if err := e.DB.CreateTable(tbl); err != nil {
			return snapshotErrorf("%v", err)
		}
	}

	for _, trg := range d.Triggers {
		if _, exists := e.DB.Trigger(trg.Name); exists {
			if !overwrite {
				continue
			}
			e.DB.DropTrigger(trg.Name)
		}
		if _, err := e.Execute(trg.SQL); err != nil {
			return snapshotErrorf("trigger %q: %v", trg.Name, err)
		}
	}
	return nil
}

// cellFromJSON decodes one JSON-unmarshaled cell value according to the
// column's type hint: a JSON string is parsed per the column's
// coarse type, falling back to literal text.
func cellFromJSON(raw interface{}, colType value.ColType) value.Value {
	if raw == nil {
		return value.Null()
	}
	switch x := raw.(type) {
	case bool:
		return value.NewBool(x)
	case float64:
		if colType == value.ColInt {
			return value.NewInt(int64(x))
		}
		if colType == value.ColBool {
			return value.NewBool(x != 0)
		}
		if x == float64(int64(x)) && colType != value.ColFloat {
			return value.NewInt(int64(x))
		}
		return value.NewFloat(x)
	case string:
		return parseStringCell(x, colType)
	default:
		return value.NewText(fmt.Sprintf("%v", x))
	}
}

func parseStringCell(s string, colType value.ColType) value.Value {
	switch colType {
	case value.ColTimestamp:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return value.NewTimestamp(t)
			}
		}
		return value.NewText(s)
	case value.ColUuid:
		return value.NewUuid(s)
	case value.ColInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.NewInt(i)
		}
		return value.NewText(s)
	case value.ColFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.NewFloat(f)
		}
		return value.NewText(s)
	case value.ColBool:
		switch strings.ToLower(s) {
		case "1", "true":
			return value.NewBool(true)
		case "0", "false":
			return value.NewBool(false)
		}
		return value.NewText(s)
	default:
		return value.NewText(s)
	}
}

// SaveSnapshot writes e's snapshot text to path.
func SaveSnapshot(e *engine.Engine, path string, pretty bool) error {
	text, err := ToSnapshot(e, pretty)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// LoadSnapshot reads and parses a snapshot file into a fresh engine.
func LoadSnapshot(path string) (*engine.Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, snapshotErrorf("%v", err)
	}
	return FromSnapshot(string(data))
}

// MergeSnapshotFile reads path and merges it into e, per MergeSnapshot's
// overwrite rule.
func MergeSnapshotFile(e *engine.Engine, path string, overwrite bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshotErrorf("%v", err)
	}
	return MergeSnapshot(e, string(data), overwrite)
}
