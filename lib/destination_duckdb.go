package rapidpro

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

type DuckdbDestination struct {
	Config       *Config
	DuckdbClient *common.DuckdbClient
	SchemaName   string
}

func NewDuckdbDestination(ctx context.Context, config *Config) (*DuckdbDestination, error) {
	duckdbClient, err := common.NewDuckdbClient(ctx, config.BaseConfig, config.BaseConfig.DuckdbPath, common.SYNCER_DUCKDB_BOOT_QUERIES)
	if err != nil {
		return nil, err
	}

	schemaName := config.BaseConfig.DestinationSchemaName
	if _, err := duckdbClient.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdentifier(schemaName)); err != nil {
		duckdbClient.Close()
		return nil, err
	}

	return &DuckdbDestination{
		Config:       config,
		DuckdbClient: duckdbClient,
		SchemaName:   schemaName,
	}, nil
}

func (destination *DuckdbDestination) LastTimestamp(ctx context.Context, table string, column string) (time.Time, error) {
	var lastTimestamp sql.NullTime
	query := "SELECT max(" + quoteIdentifier(column) + ") FROM " + destination.quotedTablePath(table)
	err := destination.DuckdbClient.QueryRowContext(ctx, query).Scan(&lastTimestamp)

	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			common.LogInfo(destination.Config.BaseConfig, "Table", table, "does not exist yet. Starting from scratch.")
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	if !lastTimestamp.Valid {
		return time.Time{}, nil
	}
	return lastTimestamp.Time.UTC(), nil
}

func (destination *DuckdbDestination) Load(ctx context.Context, table *Table, records []Record) (LoadResult, error) {
	result := LoadResult{Table: table.Name}
	if table.LoadMode == LoadModeAppend && len(records) == 0 {
		return result, nil
	}

	_, err := destination.DuckdbClient.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+destination.quotedTablePath(table.Name)+duckdbTableStructure(table))
	if err != nil {
		return result, err
	}

	if table.LoadMode == LoadModeReplace {
		if _, err := destination.DuckdbClient.ExecContext(ctx, "DELETE FROM "+destination.quotedTablePath(table.Name)); err != nil {
			return result, err
		}
	}

	rows := make([][]any, len(records))
	for i, record := range records {
		rows[i] = duckdbRowValues(table, record)
	}

	if err := destination.DuckdbClient.AppendRows(ctx, destination.SchemaName, table.Name, rows); err != nil {
		return result, err
	}

	result.RowsLoaded = len(records)
	common.LogInfo(destination.Config.BaseConfig, "Appended", len(records), "rows to table:", destination.quotedTablePath(table.Name))
	return result, nil
}

func (destination *DuckdbDestination) Close() error {
	return destination.DuckdbClient.Close()
}

func (destination *DuckdbDestination) quotedTablePath(table string) string {
	return quoteIdentifier(destination.SchemaName) + "." + quoteIdentifier(table)
}

// The appender expects values matching the column types exactly
func duckdbRowValues(table *Table, record Record) []any {
	values := table.RowValues(record)
	for i, value := range values {
		if t, ok := value.(time.Time); ok {
			values[i] = t.UTC()
		}
	}
	return values
}

func duckdbTableStructure(table *Table) string {
	columnDefinitions := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columnDefinitions[i] = quoteIdentifier(column.Name) + " " + duckdbColumnType(column)
	}
	return " (" + strings.Join(columnDefinitions, ", ") + ")"
}

func duckdbColumnType(column *Column) string {
	var duckdbType string
	switch column.Type {
	case ColumnTypeTimestamp:
		duckdbType = "TIMESTAMP"
	case ColumnTypeBoolean:
		duckdbType = "BOOLEAN"
	case ColumnTypeInteger:
		duckdbType = "BIGINT"
	default:
		duckdbType = "VARCHAR"
	}

	if column.Repeated {
		return duckdbType + "[]"
	}
	return duckdbType
}
