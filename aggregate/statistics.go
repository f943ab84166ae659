package aggregate

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/tables"
)

// StatisticsHeader is the column set of a statistics artifact.
var StatisticsHeader = []string{
	"group_id",
	"name",
	"total_rows",
	"total_columns",
	"total_cells",
	"numeric_column_count",
	"categorical_column_count",
	"distinct_categorical_value_count",
	"mean_categorical_value_frequency",
}

// DomainHeader is the column set of a domain artifact.
var DomainHeader = []string{
	"group_id",
	"name",
	"schema_syntactic",
	"schema_semantic",
	"dbpedia_syntactic",
	"dbpedia_semantic",
}

// GroupTable holds the records of one group in enumeration order.
type GroupTable[R any] struct {
	GroupID string
	Records []R
}

// Group splits results into one table per group, in the order groups are
// given. Groups with no succeeded result still get an empty table. Results
// for groups not listed are dropped.
func Group[R any](groups []string, results []dispatch.Result[R],
) []*GroupTable[R] {
	grouped := make([]*GroupTable[R], len(groups))
	byID := make(map[string]*GroupTable[R], len(groups))
	for idx, group := range groups {
		grouped[idx] = &GroupTable[R]{GroupID: group, Records: []R{}}
		byID[group] = grouped[idx]
	}
	for idx := range results {
		if results[idx].Status != dispatch.Succeeded {
			continue
		}
		if table, ok := byID[results[idx].Item.GroupID]; ok {
			table.Records = append(table.Records, results[idx].Record)
		}
	}
	return grouped
}

func StatisticsArtifact(group string) string {
	return group + ".csv"
}

func DomainArtifact(group string) string {
	return group + "_md.csv"
}

func formatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}

func statisticsRow(record tables.Record) []string {
	return []string{
		record.GroupID,
		record.Name,
		formatInt(record.TotalRows),
		formatInt(record.TotalColumns),
		formatInt(record.TotalCells),
		formatInt(record.NumericColumns),
		formatInt(record.CategoricalColumns),
		formatInt(record.DistinctCategoricalValues),
		strconv.FormatFloat(record.MeanCategoricalFrequency, 'f', -1, 64),
	}
}

func domainRow(record tables.DomainRecord) []string {
	return []string{
		record.GroupID,
		record.Name,
		record.SchemaSyntactic,
		record.SchemaSemantic,
		record.DbpediaSyntactic,
		record.DbpediaSemantic,
	}
}

func encodeCSV[R any](header []string, records []R,
	row func(R) []string) ([]byte, error) {
	var out bytes.Buffer
	writer := csv.NewWriter(&out)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := writer.Write(row(record)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeStatistics renders a group's statistics table as CSV.
func EncodeStatistics(table *GroupTable[tables.Record]) ([]byte, error) {
	return encodeCSV(StatisticsHeader, table.Records, statisticsRow)
}

// EncodeDomains renders a group's domain table as CSV.
func EncodeDomains(table *GroupTable[tables.DomainRecord]) ([]byte, error) {
	return encodeCSV(DomainHeader, table.Records, domainRow)
}
