package tables

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rcap107/study-gittables/types"
)

// GitTablesMetadataKey is the footer entry carrying table provenance.
const GitTablesMetadataKey = "gittables"

// Domain is the semantic domain annotation of a table. Present is false when
// the table carries no table_domain block; the other fields are then empty.
type Domain struct {
	Present          bool
	SchemaSyntactic  string
	SchemaSemantic   string
	DbpediaSyntactic string
	DbpediaSemantic  string
}

// DomainRecord is one row of a group's domain table.
type DomainRecord struct {
	GroupID string
	Name    string
	Domain
}

type domainBlock struct {
	SchemaSyntactic  json.RawMessage `json:"schema_syntactic"`
	SchemaSemantic   json.RawMessage `json:"schema_semantic"`
	DbpediaSyntactic json.RawMessage `json:"dbpedia_syntactic"`
	DbpediaSemantic  json.RawMessage `json:"dbpedia_semantic"`
}

type provenance struct {
	TableDomain *domainBlock `json:"table_domain"`
}

// annotation renders a metadata value: strings as-is, null as empty, and
// anything else as compact JSON.
func annotation(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// ParseDomain extracts the table_domain block from a table's metadata. An
// absent entry or block yields a Domain with Present unset; an entry that is
// not valid JSON is an error.
func ParseDomain(metadata map[string]string) (Domain, error) {
	raw, ok := metadata[GitTablesMetadataKey]
	if !ok {
		return Domain{}, nil
	}
	var meta provenance
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Domain{}, fmt.Errorf("%w: %s entry: %v", ErrSchema,
			GitTablesMetadataKey, err)
	}
	if meta.TableDomain == nil {
		return Domain{}, nil
	}
	return Domain{
		Present:          true,
		SchemaSyntactic:  annotation(meta.TableDomain.SchemaSyntactic),
		SchemaSemantic:   annotation(meta.TableDomain.SchemaSemantic),
		DbpediaSyntactic: annotation(meta.TableDomain.DbpediaSyntactic),
		DbpediaSemantic:  annotation(meta.TableDomain.DbpediaSemantic),
	}, nil
}

// ProfileDomain is the per-item processor for domain runs. Tables without a
// table_domain block fail with ErrSchema.
func ProfileDomain(_ context.Context, item types.Item) (DomainRecord,
	error) {
	metadata, err := ReadMetadata(item.Path)
	if err != nil {
		return DomainRecord{}, err
	}
	domain, err := ParseDomain(metadata)
	if err != nil {
		return DomainRecord{}, err
	}
	if !domain.Present {
		return DomainRecord{}, fmt.Errorf("%w: no table_domain in %s",
			ErrSchema, item)
	}
	return DomainRecord{GroupID: item.GroupID, Name: item.MemberID,
		Domain: domain}, nil
}
