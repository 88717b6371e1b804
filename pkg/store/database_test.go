package store

import (
	"testing"

	"quill/pkg/value"
)

func TestCreateAndDropTable(t *testing.T) {
	db := NewDatabase()
	tbl := NewTable("t", []value.Column{{Name: "a", Type: value.ColInt}})
	if err := db.CreateTable(tbl); err != nil {
		t.Fatalf("CreateTable returned error: %v", err)
	}
	if _, ok := db.Table("T"); !ok {
		t.Error("Table lookup should be case-insensitive")
	}
	if !db.DropTable("t") {
		t.Error("DropTable should report success")
	}
	if _, ok := db.Table("t"); ok {
		t.Error("table should no longer exist after DropTable")
	}
}

func TestCreateTableDuplicateFails(t *testing.T) {
	db := NewDatabase()
	db.CreateTable(NewTable("t", nil))
	if err := db.CreateTable(NewTable("T", nil)); err == nil {
		t.Error("creating a duplicate table name should fail")
	}
}

func TestTriggersForOrdering(t *testing.T) {
	db := NewDatabase()
	first := &Trigger{Name: "t1", Table: "orders"}
	second := &Trigger{Name: "t2", Table: "orders"}
	db.CreateTrigger(first)
	db.CreateTrigger(second)

	got := db.TriggersFor("orders", first.Timing, first.Event)
	if len(got) != 2 || got[0].Name != "t1" || got[1].Name != "t2" {
		t.Errorf("TriggersFor order = %v, want [t1, t2]", got)
	}
}
