package rapidpro

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	TABLE_FLOWS           = "flows"
	TABLE_FLOW_RUNS       = "flow_runs"
	TABLE_FLOW_RUN_VALUES = "flow_run_values"
	TABLE_GROUPS          = "groups"
	TABLE_CONTACTS        = "contacts_raw"
	TABLE_GROUP_CONTACTS  = "group_contacts"

	JSON_TIMESTAMP_FORMAT = "2006-01-02T15:04:05.999999Z07:00"
)

// Load order
var TABLE_NAMES = []string{
	TABLE_FLOWS,
	TABLE_FLOW_RUNS,
	TABLE_FLOW_RUN_VALUES,
	TABLE_GROUPS,
	TABLE_CONTACTS,
	TABLE_GROUP_CONTACTS,
}

type ColumnType string

const (
	ColumnTypeString    ColumnType = "STRING"
	ColumnTypeTimestamp ColumnType = "TIMESTAMP"
	ColumnTypeBoolean   ColumnType = "BOOLEAN"
	ColumnTypeInteger   ColumnType = "INTEGER"
)

type LoadMode string

const (
	LoadModeReplace LoadMode = "replace" // truncate the table, then write
	LoadModeAppend  LoadMode = "append"
)

type Column struct {
	Name     string
	Type     ColumnType
	Repeated bool
}

type Table struct {
	Name         string
	Columns      []*Column
	LoadMode     LoadMode
	CursorColumn string // max() of this column is the watermark for the next sync, empty if not incremental
}

type Record map[string]interface{}

func (table *Table) ColumnNames() []string {
	names := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		names[i] = column.Name
	}
	return names
}

func (table *Table) Column(name string) *Column {
	for _, column := range table.Columns {
		if column.Name == name {
			return column
		}
	}
	return nil
}

// Values in column order, missing columns are nil
func (table *Table) RowValues(record Record) []any {
	values := make([]any, len(table.Columns))
	for i, column := range table.Columns {
		values[i] = record[column.Name]
	}
	return values
}

// Only the table's columns, timestamps as ISO 8601 strings
func (table *Table) JsonRow(record Record) map[string]interface{} {
	row := make(map[string]interface{}, len(table.Columns))
	for _, column := range table.Columns {
		value := record[column.Name]
		if t, ok := value.(time.Time); ok {
			value = t.UTC().Format(JSON_TIMESTAMP_FORMAT)
		}
		row[column.Name] = value
	}
	return row
}

// Only the table's columns, timestamps as microseconds since the epoch, repeated columns never null
func (table *Table) ParquetRow(record Record) map[string]interface{} {
	row := make(map[string]interface{}, len(table.Columns))
	for _, column := range table.Columns {
		value := record[column.Name]
		if t, ok := value.(time.Time); ok {
			value = t.UnixMicro()
		}
		if column.Repeated && value == nil {
			value = []string{}
		}
		row[column.Name] = value
	}
	return row
}

func FlowsTable() *Table {
	return &Table{
		Name:     TABLE_FLOWS,
		LoadMode: LoadModeReplace,
		Columns: []*Column{
			{Name: "labels", Type: ColumnTypeString, Repeated: true},
			{Name: "name", Type: ColumnTypeString},
			{Name: "uuid", Type: ColumnTypeString},
		},
	}
}

func FlowRunsTable() *Table {
	return &Table{
		Name:         TABLE_FLOW_RUNS,
		LoadMode:     LoadModeAppend,
		CursorColumn: "created_on",
		Columns: []*Column{
			{Name: "modified_on", Type: ColumnTypeTimestamp},
			{Name: "responded", Type: ColumnTypeBoolean},
			{Name: "contact_uuid", Type: ColumnTypeString},
			{Name: "flow_uuid", Type: ColumnTypeString},
			{Name: "exit_type", Type: ColumnTypeString},
			{Name: "created_on", Type: ColumnTypeTimestamp},
			{Name: "exited_on", Type: ColumnTypeTimestamp},
			{Name: "id", Type: ColumnTypeInteger},
		},
	}
}

func FlowRunValuesTable() *Table {
	return &Table{
		Name:     TABLE_FLOW_RUN_VALUES,
		LoadMode: LoadModeAppend,
		Columns: []*Column{
			{Name: "input", Type: ColumnTypeString},
			{Name: "time", Type: ColumnTypeTimestamp},
			{Name: "category", Type: ColumnTypeString},
			{Name: "name", Type: ColumnTypeString},
			{Name: "value", Type: ColumnTypeString},
			{Name: "run_id", Type: ColumnTypeInteger},
		},
	}
}

func GroupsTable() *Table {
	return &Table{
		Name:     TABLE_GROUPS,
		LoadMode: LoadModeReplace,
		Columns: []*Column{
			{Name: "name", Type: ColumnTypeString},
			{Name: "uuid", Type: ColumnTypeString},
		},
	}
}

func GroupContactsTable() *Table {
	return &Table{
		Name:     TABLE_GROUP_CONTACTS,
		LoadMode: LoadModeAppend,
		Columns: []*Column{
			{Name: "group_uuid", Type: ColumnTypeString},
			{Name: "contact_uuid", Type: ColumnTypeString},
		},
	}
}

// extraColumns come from the deployment's contact field map, see LoadContactColumns
func ContactsTable(extraColumns []*Column) *Table {
	table := &Table{
		Name:         TABLE_CONTACTS,
		LoadMode:     LoadModeAppend,
		CursorColumn: "modified_on",
		Columns: []*Column{
			{Name: "uuid", Type: ColumnTypeString},
			{Name: "modified_on", Type: ColumnTypeTimestamp},
			{Name: "urn", Type: ColumnTypeString},
		},
	}

	for _, extraColumn := range extraColumns {
		if existing := table.Column(extraColumn.Name); existing != nil {
			existing.Type = extraColumn.Type
			continue
		}
		table.Columns = append(table.Columns, extraColumn)
	}

	return table
}

// Reads {"column": "TYPE", ...} keeping the key order of the file
func LoadContactColumns(filePath string) ([]*Column, error) {
	if filePath == "" {
		return nil, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read contact fields file '%s': %w", filePath, err)
	}
	defer file.Close()

	columns, err := parseContactColumns(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contact fields file '%s': %w", filePath, err)
	}
	return columns, nil
}

func parseContactColumns(reader io.Reader) ([]*Column, error) {
	decoder := json.NewDecoder(reader)

	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	columns := []*Column{}
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		name := keyToken.(string)

		var typeName string
		if err := decoder.Decode(&typeName); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}

		columnType, err := parseColumnType(typeName)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}

		switch name {
		case "uuid":
			if columnType != ColumnTypeString {
				return nil, fmt.Errorf("field uuid must be STRING")
			}
		case "modified_on":
			if columnType != ColumnTypeTimestamp {
				return nil, fmt.Errorf("field modified_on must be TIMESTAMP")
			}
		}

		columns = append(columns, &Column{Name: name, Type: columnType})
	}

	return columns, nil
}

func parseColumnType(typeName string) (ColumnType, error) {
	switch ColumnType(strings.ToUpper(strings.TrimSpace(typeName))) {
	case ColumnTypeString:
		return ColumnTypeString, nil
	case ColumnTypeTimestamp:
		return ColumnTypeTimestamp, nil
	case ColumnTypeBoolean:
		return ColumnTypeBoolean, nil
	case ColumnTypeInteger:
		return ColumnTypeInteger, nil
	}
	return "", fmt.Errorf("unsupported type %q, must be one of STRING, TIMESTAMP, BOOLEAN, INTEGER", typeName)
}
