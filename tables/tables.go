// Package tables profiles structured table files: their shape, the split of
// their columns into numeric and categorical, and the cardinality of their
// categorical cells.
package tables

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rcap107/study-gittables/types"
)

var ErrParse = errors.New("malformed table")
var ErrSchema = errors.New("missing table metadata")

// NullCell is the string form of a missing cell value.
const NullCell = "null"

// Column holds one column of a table. Cells are only materialized for
// categorical columns; numeric columns never contribute cell values.
type Column struct {
	Name    string
	Numeric bool
	Cells   []string
}

// Table is the row/column model of one table file.
type Table struct {
	Rows     int64
	Columns  []Column
	Metadata map[string]string
}

// Record is the structural summary of one table.
type Record struct {
	GroupID                   string
	Name                      string
	TotalRows                 int64
	TotalColumns              int64
	TotalCells                int64
	NumericColumns            int64
	CategoricalColumns        int64
	DistinctCategoricalValues int64
	MeanCategoricalFrequency  float64
}

// Summarize computes the statistics of table. The mean frequency is the
// number of categorical cells divided by the number of distinct categorical
// values, and zero when there are none.
func Summarize(table *Table) Record {
	record := Record{
		TotalRows:    table.Rows,
		TotalColumns: int64(len(table.Columns)),
	}
	record.TotalCells = record.TotalRows * record.TotalColumns
	distinct := make(map[string]int64)
	var cells int64
	for idx := range table.Columns {
		column := &table.Columns[idx]
		if column.Numeric {
			record.NumericColumns++
			continue
		}
		record.CategoricalColumns++
		for _, cell := range column.Cells {
			distinct[cell]++
			cells++
		}
	}
	record.DistinctCategoricalValues = int64(len(distinct))
	if len(distinct) > 0 {
		record.MeanCategoricalFrequency = float64(cells) /
			float64(len(distinct))
	}
	return record
}

// Read parses the table at path, choosing the reader by extension. Anything
// that is not a .csv file is read as Parquet.
func Read(path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(path)
	}
	return ReadParquet(path)
}

// Profile is the per-item processor for statistics runs.
func Profile(_ context.Context, item types.Item) (Record, error) {
	table, err := Read(item.Path)
	if err != nil {
		return Record{}, err
	}
	record := Summarize(table)
	record.GroupID = item.GroupID
	record.Name = item.MemberID
	return record, nil
}
