package tables

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rcap107/study-gittables/resources"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
)

// PandasMetadataKey is the footer entry pandas writes with its column types.
const PandasMetadataKey = "pandas"

type pandasColumn struct {
	FieldName  string `json:"field_name"`
	PandasType string `json:"pandas_type"`
}

type pandasMetadata struct {
	IndexColumns []json.RawMessage `json:"index_columns"`
	Columns      []pandasColumn    `json:"columns"`
}

// declaredTypes returns the pandas type per field and the set of fields that
// hold the serialized index rather than data.
func declaredTypes(metadata map[string]string) (map[string]string,
	map[string]bool) {
	declared := make(map[string]string)
	index := make(map[string]bool)
	raw, ok := metadata[PandasMetadataKey]
	if !ok {
		return declared, index
	}
	var pandas pandasMetadata
	if err := json.Unmarshal([]byte(raw), &pandas); err != nil {
		return declared, index
	}
	for _, column := range pandas.Columns {
		declared[column.FieldName] = column.PandasType
	}
	for _, entry := range pandas.IndexColumns {
		// Range indexes are described by an object and have no field.
		var name string
		if json.Unmarshal(entry, &name) == nil {
			index[name] = true
		}
	}
	return declared, index
}

func numericPandasType(pandasType string) bool {
	for _, prefix := range []string{"int", "uint", "float"} {
		if strings.HasPrefix(pandasType, prefix) {
			return true
		}
	}
	return false
}

func numericPhysicalType(element *parquet.SchemaElement) bool {
	if element.Type == nil {
		return false
	}
	switch *element.Type {
	case parquet.Type_INT32, parquet.Type_INT64, parquet.Type_FLOAT,
		parquet.Type_DOUBLE:
	default:
		return false
	}
	if element.ConvertedType != nil {
		switch *element.ConvertedType {
		case parquet.ConvertedType_DATE, parquet.ConvertedType_TIME_MILLIS,
			parquet.ConvertedType_TIME_MICROS,
			parquet.ConvertedType_TIMESTAMP_MILLIS,
			parquet.ConvertedType_TIMESTAMP_MICROS,
			parquet.ConvertedType_DECIMAL, parquet.ConvertedType_INTERVAL:
			return false
		}
	}
	if logical := element.LogicalType; logical != nil {
		if logical.IsSetDATE() || logical.IsSetTIME() ||
			logical.IsSetTIMESTAMP() || logical.IsSetDECIMAL() {
			return false
		}
	}
	return true
}

func cellString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return NullCell
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func footerMetadata(pr *reader.ParquetReader) map[string]string {
	metadata := make(map[string]string)
	for _, kv := range pr.Footer.KeyValueMetadata {
		if kv.Value != nil {
			metadata[kv.Key] = *kv.Value
		}
	}
	return metadata
}

// ParseParquet decodes a Parquet file held in memory. Categorical cells are
// copied out, so data may be released once it returns.
func ParseParquet(data []byte) (table *Table, err error) {
	// The decoder panics on some corrupt inputs.
	defer func() {
		if recovered := recover(); recovered != nil {
			table = nil
			err = fmt.Errorf("%w: %v", ErrParse, recovered)
		}
	}()
	bf := buffer.NewBufferFileFromBytesNoAlloc(data)
	pr, err := reader.NewParquetColumnReader(bf, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer pr.ReadStop()

	table = &Table{
		Rows:     pr.GetNumRows(),
		Metadata: footerMetadata(pr),
	}
	declared, index := declaredTypes(table.Metadata)

	schema := pr.Footer.Schema
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: empty schema", ErrParse)
	}
	// Element 0 is the root; a flat table has only leaves below it.
	for leaf, element := range schema[1:] {
		if element.GetNumChildren() > 0 || element.Type == nil {
			return nil, fmt.Errorf("%w: nested column %q is not supported",
				ErrParse, element.Name)
		}
		if index[element.Name] {
			continue
		}
		column := Column{Name: element.Name}
		if pandasType, ok := declared[element.Name]; ok {
			column.Numeric = numericPandasType(pandasType)
		} else {
			column.Numeric = numericPhysicalType(element)
		}
		if !column.Numeric && table.Rows > 0 {
			values, _, _, readErr := pr.ReadColumnByIndex(int64(leaf),
				table.Rows)
			if readErr != nil {
				return nil, fmt.Errorf("%w: column %q: %v", ErrParse,
					element.Name, readErr)
			}
			column.Cells = make([]string, len(values))
			for idx, value := range values {
				column.Cells[idx] = cellString(value)
			}
		}
		table.Columns = append(table.Columns, column)
	}
	return table, nil
}

// ReadParquet maps the file at path and decodes it.
func ReadParquet(path string) (*Table, error) {
	mapped, err := resources.MapFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer mapped.Unmap()
	if len(mapped.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrParse, path)
	}
	return ParseParquet(mapped.Data)
}

// ReadMetadata returns the key/value metadata of a Parquet footer without
// decoding any column. CSV tables have none.
func ReadMetadata(path string) (metadata map[string]string, err error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return map[string]string{}, nil
	}
	mapped, err := resources.MapFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer mapped.Unmap()
	if len(mapped.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrParse, path)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			metadata = nil
			err = fmt.Errorf("%w: %v", ErrParse, recovered)
		}
	}()
	pr, err := reader.NewParquetColumnReader(
		buffer.NewBufferFileFromBytesNoAlloc(mapped.Data), 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer pr.ReadStop()
	return footerMetadata(pr), nil
}
