// Package table provides the in-memory rectangular table model shared by
// the decoder and the persistence codec. A table holds ordered, named
// columns; every column is either numeric (float64, NaN marks a missing
// value) or text. All columns in a table have the same row count.
package table

import (
	"fmt"
	"math"
)

// Kind identifies the value type of a column.
type Kind int

const (
	// KindNumeric is a column of float64 values. NaN is the missing sentinel.
	KindNumeric Kind = iota

	// KindText is a column of strings. The empty string is an ordinary value.
	KindText
)

// Column is a single named column of homogeneous values. Exactly one of
// Nums or Text is populated, according to Kind.
type Column struct {
	Name string
	Kind Kind
	Nums []float64
	Text []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == KindText {
		return len(c.Text)
	}
	return len(c.Nums)
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	names []string
	cols  map[string]*Column
}

// New creates an empty table.
func New() *Table {
	return &Table{cols: make(map[string]*Column)}
}

// AddNumeric appends a numeric column. The column length must match the
// table's row count unless the table is empty.
func (t *Table) AddNumeric(name string, values []float64) error {
	return t.add(&Column{Name: name, Kind: KindNumeric, Nums: values})
}

// AddText appends a text column. The column length must match the table's
// row count unless the table is empty.
func (t *Table) AddText(name string, values []string) error {
	return t.add(&Column{Name: name, Kind: KindText, Text: values})
}

func (t *Table) add(col *Column) error {
	if col.Name == "" {
		return fmt.Errorf("table: column name must not be empty")
	}
	if _, exists := t.cols[col.Name]; exists {
		return fmt.Errorf("table: duplicate column %q", col.Name)
	}
	if len(t.names) > 0 && col.Len() != t.NumRows() {
		return fmt.Errorf("table: column %q has %d rows, table has %d", col.Name, col.Len(), t.NumRows())
	}
	t.names = append(t.names, col.Name)
	t.cols[col.Name] = col
	return nil
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Column returns the named column, or false if it does not exist.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// NumRows returns the row count of the table (zero for an empty table).
func (t *Table) NumRows() int {
	if len(t.names) == 0 {
		return 0
	}
	return t.cols[t.names[0]].Len()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.names)
}

// Equal reports whether two tables have identical column order, kinds and
// values. NaN numeric values compare equal to each other.
func (t *Table) Equal(other *Table) bool {
	if other == nil || len(t.names) != len(other.names) {
		return false
	}
	for i, name := range t.names {
		if other.names[i] != name {
			return false
		}
		a, b := t.cols[name], other.cols[name]
		if a.Kind != b.Kind || a.Len() != b.Len() {
			return false
		}
		switch a.Kind {
		case KindText:
			for j := range a.Text {
				if a.Text[j] != b.Text[j] {
					return false
				}
			}
		default:
			for j := range a.Nums {
				if a.Nums[j] != b.Nums[j] && !(math.IsNaN(a.Nums[j]) && math.IsNaN(b.Nums[j])) {
					return false
				}
			}
		}
	}
	return true
}
