package store

import (
	"strings"

	"quill/pkg/sql/parser"
	"quill/pkg/value"
)

// Database is the case-insensitive catalog of tables and triggers a
// single engine instance owns. User functions and add-ins live in
// pkg/eval's registries, which the engine wires alongside this catalog.
type Database struct {
	tables   map[string]*Table
	order    []string // table names in creation order, for deterministic snapshots
	triggers map[string]*Trigger
	trigOrd  []string // trigger registration order (spec 4.6 firing order)
}

func NewDatabase() *Database {
	return &Database{
		tables:   make(map[string]*Table),
		triggers: make(map[string]*Trigger),
	}
}

func (d *Database) CreateTable(t *Table) error {
	key := strings.ToUpper(t.Name)
	if _, exists := d.tables[key]; exists {
		return storeErrorf("table %q already exists", t.Name)
	}
	d.tables[key] = t
	d.order = append(d.order, t.Name)
	return nil
}

func (d *Database) DropTable(name string) bool {
	key := strings.ToUpper(name)
	if _, ok := d.tables[key]; !ok {
		return false
	}
	delete(d.tables, key)
	for i, n := range d.order {
		if strings.EqualFold(n, name) {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

func (d *Database) Table(name string) (*Table, bool) {
	t, ok := d.tables[strings.ToUpper(name)]
	return t, ok
}

// TableNames returns table names in creation order.
func (d *Database) TableNames() []string {
	return append([]string(nil), d.order...)
}

// ColumnType implements eval.TableCatalog.
func (d *Database) ColumnType(table, column string) (value.ColType, bool) {
	t, ok := d.Table(table)
	if !ok {
		return value.ColAny, false
	}
	return t.ColumnType(column)
}

func (d *Database) CreateTrigger(t *Trigger) error {
	key := strings.ToUpper(t.Name)
	if _, exists := d.triggers[key]; exists {
		return storeErrorf("trigger %q already exists", t.Name)
	}
	d.triggers[key] = t
	d.trigOrd = append(d.trigOrd, t.Name)
	return nil
}

func (d *Database) DropTrigger(name string) bool {
	key := strings.ToUpper(name)
	if _, ok := d.triggers[key]; !ok {
		return false
	}
	delete(d.triggers, key)
	for i, n := range d.trigOrd {
		if strings.EqualFold(n, name) {
			d.trigOrd = append(d.trigOrd[:i], d.trigOrd[i+1:]...)
			break
		}
	}
	return true
}

func (d *Database) Trigger(name string) (*Trigger, bool) {
	t, ok := d.triggers[strings.ToUpper(name)]
	return t, ok
}

// TriggersFor returns the triggers registered for table/timing/event, in
// registration order (triggers fire in the order they were
// created).
func (d *Database) TriggersFor(table string, timing parser.TriggerTiming, event parser.TriggerEvent) []*Trigger {
	var out []*Trigger
	for _, name := range d.trigOrd {
		t := d.triggers[strings.ToUpper(name)]
		if t == nil {
			continue
		}
		if strings.EqualFold(t.Table, table) && t.Timing == timing && t.Event == event {
			out = append(out, t)
		}
	}
	return out
}
