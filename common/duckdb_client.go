package common

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/marcboeker/go-duckdb/v2"
)

var SYNCER_DUCKDB_BOOT_QUERIES = []string{
	"SET memory_limit='2GB'",
	"SET threads=2",
}

type DuckdbClient struct {
	Config    *BaseConfig
	Db        *sql.DB
	Connector *duckdb.Connector
}

// An empty path opens an in-memory database
func NewDuckdbClient(ctx context.Context, config *BaseConfig, path string, bootQueries ...[]string) (*DuckdbClient, error) {
	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)

	client := &DuckdbClient{
		Config:    config,
		Db:        db,
		Connector: connector,
	}

	queries := []string{
		"SET timezone='UTC'",
	}
	if bootQueries != nil {
		queries = append(queries, bootQueries[0]...)
	}
	for _, query := range queries {
		if _, err := client.ExecContext(ctx, query); err != nil {
			db.Close()
			return nil, err
		}
	}

	return client, nil
}

func (client *DuckdbClient) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	LogDebug(client.Config, "Querying DuckDBClient:", query)
	return client.Db.QueryRowContext(ctx, query, args...)
}

func (client *DuckdbClient) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	LogDebug(client.Config, "Querying DuckDBClient:", query)
	return client.Db.ExecContext(ctx, query, args...)
}

// Appends rows through a dedicated connection, flushing once at the end
func (client *DuckdbClient) AppendRows(ctx context.Context, schema string, table string, rows [][]any) error {
	conn, err := client.Connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	appender, err := duckdb.NewAppenderFromConn(conn, schema, table)
	if err != nil {
		return err
	}

	for _, row := range rows {
		values := make([]driver.Value, len(row))
		for i, value := range row {
			values[i] = value
		}
		if err := appender.AppendRow(values...); err != nil {
			appender.Close()
			return err
		}
	}

	LogDebug(client.Config, "Appended", len(rows), "rows to DuckDB table:", table)
	return appender.Close() // Close flushes
}

func (client *DuckdbClient) Close() error {
	return client.Db.Close()
}
