package rapidpro

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

type TrinoDestination struct {
	Config *Config
	Trino  *common.Trino
}

func NewTrinoDestination(ctx context.Context, config *Config) (*TrinoDestination, error) {
	trino, err := common.NewTrino(config.BaseConfig)
	if err != nil {
		return nil, err
	}

	if err := trino.CreateSchemaIfNotExists(ctx); err != nil {
		trino.Close()
		return nil, err
	}

	return &TrinoDestination{
		Config: config,
		Trino:  trino,
	}, nil
}

func (destination *TrinoDestination) LastTimestamp(ctx context.Context, table string, column string) (time.Time, error) {
	var nullString sql.NullString
	query := "SELECT CAST(max(" + quoteIdentifier(column) + ") AS VARCHAR) FROM " + destination.Trino.QuotedTablePath(table)
	err := destination.Trino.QueryRowContext(ctx, query).Scan(&nullString)

	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		if strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "Table not found") {
			common.LogInfo(destination.Config.BaseConfig, "Table", table, "does not exist yet. Starting from scratch.")
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	if !nullString.Valid || nullString.String == "" {
		return time.Time{}, nil
	}

	return common.StringMsToUtcTime(nullString.String)
}

func (destination *TrinoDestination) Load(ctx context.Context, table *Table, records []Record) (LoadResult, error) {
	result := LoadResult{Table: table.Name}
	if table.LoadMode == LoadModeAppend && len(records) == 0 {
		return result, nil
	}

	err := destination.Trino.CreateTableIfNotExists(ctx, table.Name, trinoTableStructure(table))
	if err != nil {
		return result, err
	}

	quotedTablePath := destination.Trino.QuotedTablePath(table.Name)

	if table.LoadMode == LoadModeReplace {
		deleteResult, err := destination.Trino.ExecContext(ctx, "DELETE FROM "+quotedTablePath)
		if err != nil {
			return result, err
		}
		if rowCount, err := deleteResult.RowsAffected(); err == nil {
			common.LogInfo(destination.Config.BaseConfig, "Deleted", rowCount, "rows from table:", quotedTablePath)
		}
	}

	for _, insertSql := range trinoInsertStatements(quotedTablePath, table, records, common.TRINO_MAX_QUERY_LENGTH) {
		if _, err := destination.Trino.ExecContext(ctx, insertSql); err != nil {
			return result, err
		}
	}

	result.RowsLoaded = len(records)
	common.LogInfo(destination.Config.BaseConfig, "Inserted", len(records), "rows into table:", quotedTablePath)
	return result, nil
}

func (destination *TrinoDestination) Close() error {
	return destination.Trino.Close()
}

func trinoTableStructure(table *Table) string {
	columnDefinitions := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columnDefinitions[i] = quoteIdentifier(column.Name) + " " + trinoColumnType(column)
	}
	return " (" + strings.Join(columnDefinitions, ", ") + ")"
}

func trinoColumnType(column *Column) string {
	var trinoType string
	switch column.Type {
	case ColumnTypeTimestamp:
		trinoType = "timestamp(6) with time zone"
	case ColumnTypeBoolean:
		trinoType = "boolean"
	case ColumnTypeInteger:
		trinoType = "bigint"
	default:
		trinoType = "varchar"
	}

	if column.Repeated {
		return "array(" + trinoType + ")"
	}
	return trinoType
}

// Multi-row INSERT statements, each one shorter than maxQueryLength unless a single row doesn't fit
func trinoInsertStatements(quotedTablePath string, table *Table, records []Record, maxQueryLength int) []string {
	insertSqlPrefix := "INSERT INTO " + quotedTablePath + " (" + quotedColumnNames(table) + ") VALUES "
	statements := []string{}
	currentSql := insertSqlPrefix

	for _, record := range records {
		rowValuesStatement := trinoRow(table, record)

		if len(currentSql)+len(rowValuesStatement)+1 < maxQueryLength { // +1 for the comma
			if currentSql != insertSqlPrefix {
				currentSql += ","
			}
			currentSql += rowValuesStatement
		} else if currentSql == insertSqlPrefix {
			statements = append(statements, currentSql+rowValuesStatement)
		} else {
			statements = append(statements, currentSql)
			currentSql = insertSqlPrefix + rowValuesStatement
		}
	}

	if currentSql != insertSqlPrefix {
		statements = append(statements, currentSql)
	}

	return statements
}

func trinoRow(table *Table, record Record) string {
	values := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		values[i] = trinoLiteral(column, record[column.Name])
	}
	return "(" + strings.Join(values, ",") + ")"
}

func trinoLiteral(column *Column, value interface{}) string {
	if value == nil {
		return "NULL"
	}

	switch v := value.(type) {
	case string:
		if column.Type == ColumnTypeTimestamp {
			return "TIMESTAMP '" + escapeSingleQuotes(v) + "'"
		}
		return "'" + escapeSingleQuotes(v) + "'"
	case time.Time:
		return "TIMESTAMP '" + common.TimeToUtcStringMs(v) + " UTC'"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return common.Int64ToString(v)
	case int:
		return common.IntToString(v)
	case []string:
		if len(v) == 0 {
			return "CAST(ARRAY[] AS array(varchar))"
		}
		elements := make([]string, len(v))
		for i, element := range v {
			elements[i] = "'" + escapeSingleQuotes(element) + "'"
		}
		return "ARRAY[" + strings.Join(elements, ",") + "]"
	}

	return "'" + escapeSingleQuotes(fmt.Sprint(value)) + "'"
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
