package rapidpro

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

const (
	PG_ERROR_UNDEFINED_TABLE = "42P01"
)

type PostgresDestination struct {
	Config         *Config
	PostgresClient *common.PostgresClient
	SchemaName     string
}

func NewPostgresDestination(ctx context.Context, config *Config) (*PostgresDestination, error) {
	postgresClient, err := common.NewPostgresClient(ctx, config.BaseConfig, config.BaseConfig.PostgresDatabaseUrl)
	if err != nil {
		return nil, err
	}

	schemaName := config.BaseConfig.DestinationSchemaName
	if _, err := postgresClient.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdentifier(schemaName)); err != nil {
		postgresClient.Close()
		return nil, err
	}

	return &PostgresDestination{
		Config:         config,
		PostgresClient: postgresClient,
		SchemaName:     schemaName,
	}, nil
}

func (destination *PostgresDestination) LastTimestamp(ctx context.Context, table string, column string) (time.Time, error) {
	var lastTimestamp *time.Time
	query := "SELECT max(" + quoteIdentifier(column) + ") FROM " + destination.quotedTablePath(table)
	err := destination.PostgresClient.QueryRow(ctx, query).Scan(&lastTimestamp)

	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == PG_ERROR_UNDEFINED_TABLE {
			common.LogInfo(destination.Config.BaseConfig, "Table", table, "does not exist yet. Starting from scratch.")
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	if lastTimestamp == nil {
		return time.Time{}, nil
	}
	return lastTimestamp.UTC(), nil
}

// TRUNCATE and COPY run in one transaction, so a failed replace keeps the previous rows
func (destination *PostgresDestination) Load(ctx context.Context, table *Table, records []Record) (LoadResult, error) {
	result := LoadResult{Table: table.Name}
	if table.LoadMode == LoadModeAppend && len(records) == 0 {
		return result, nil
	}

	_, err := destination.PostgresClient.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+destination.quotedTablePath(table.Name)+postgresTableStructure(table))
	if err != nil {
		return result, err
	}

	rows := make([][]any, len(records))
	for i, record := range records {
		rows[i] = table.RowValues(record)
	}

	err = destination.PostgresClient.InTransaction(ctx, func(tx pgx.Tx) error {
		if table.LoadMode == LoadModeReplace {
			if _, err := tx.Exec(ctx, "TRUNCATE "+destination.quotedTablePath(table.Name)); err != nil {
				return err
			}
		}

		copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{destination.SchemaName, table.Name}, table.ColumnNames(), pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
		result.RowsLoaded = int(copyCount)
		return nil
	})
	if err != nil {
		return result, err
	}

	common.LogInfo(destination.Config.BaseConfig, "Copied", result.RowsLoaded, "rows into table:", destination.quotedTablePath(table.Name))
	return result, nil
}

func (destination *PostgresDestination) Close() error {
	return destination.PostgresClient.Close()
}

func (destination *PostgresDestination) quotedTablePath(table string) string {
	return quoteIdentifier(destination.SchemaName) + "." + quoteIdentifier(table)
}

func postgresTableStructure(table *Table) string {
	columnDefinitions := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columnDefinitions[i] = quoteIdentifier(column.Name) + " " + postgresColumnType(column)
	}
	return " (" + strings.Join(columnDefinitions, ", ") + ")"
}

func postgresColumnType(column *Column) string {
	var postgresType string
	switch column.Type {
	case ColumnTypeTimestamp:
		postgresType = "timestamptz"
	case ColumnTypeBoolean:
		postgresType = "boolean"
	case ColumnTypeInteger:
		postgresType = "bigint"
	default:
		postgresType = "text"
	}

	if column.Repeated {
		return postgresType + "[]"
	}
	return postgresType
}
