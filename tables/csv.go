package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ParseCSV reads a headed CSV table. A column is numeric when every
// non-empty cell parses as a number; empty cells are nulls.
func ParseCSV(input io.Reader) (*Table, error) {
	records := csv.NewReader(input)
	header, err := records.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", ErrParse)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	table := &Table{
		Columns:  make([]Column, len(header)),
		Metadata: make(map[string]string),
	}
	for idx, name := range header {
		table.Columns[idx] = Column{Name: name, Numeric: true}
	}
	for {
		row, err := records.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		table.Rows++
		for idx, cell := range row {
			column := &table.Columns[idx]
			if cell == "" {
				column.Cells = append(column.Cells, NullCell)
				continue
			}
			if column.Numeric {
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					column.Numeric = false
				}
			}
			column.Cells = append(column.Cells, cell)
		}
	}
	for idx := range table.Columns {
		if table.Columns[idx].Numeric {
			table.Columns[idx].Cells = nil
		}
	}
	return table, nil
}

func ReadCSV(path string) (*Table, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer handle.Close()
	return ParseCSV(handle)
}
