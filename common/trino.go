package common

import (
	"context"
	"database/sql"

	_ "github.com/trinodb/trino-go-client/trino"
)

const (
	TRINO_MAX_QUERY_LENGTH = 1_000_000
)

type Trino struct {
	Config     *BaseConfig
	Db         *sql.DB
	SchemaName string
}

func NewTrino(config *BaseConfig) (*Trino, error) {
	db, err := sql.Open("trino", config.Trino.DatabaseUrl)
	if err != nil {
		return nil, err
	}

	return &Trino{
		Config:     config,
		Db:         db,
		SchemaName: config.DestinationSchemaName,
	}, nil
}

func (trino *Trino) Schema() string {
	return trino.Config.Trino.CatalogName + "." + trino.SchemaName
}

func (trino *Trino) QuotedTablePath(tableName string) string {
	return trino.Schema() + `."` + tableName + `"`
}

func (trino *Trino) Close() error {
	return trino.Db.Close()
}

func (trino *Trino) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	LogDebug(trino.Config, "Trino query:", query)
	result, err := trino.Db.ExecContext(ctx, query, args...)
	if err != nil {
		LogError(trino.Config, "Trino query failed:", query)
		return nil, err
	}

	return result, nil
}

func (trino *Trino) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	LogDebug(trino.Config, "Trino query:", query)
	return trino.Db.QueryRowContext(ctx, query, args...)
}

func (trino *Trino) CreateSchemaIfNotExists(ctx context.Context) error {
	_, err := trino.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+trino.Schema())
	return err
}

func (trino *Trino) CreateTableIfNotExists(ctx context.Context, tableName string, tableStructure string) error {
	_, err := trino.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+trino.QuotedTablePath(tableName)+tableStructure)
	return err
}
