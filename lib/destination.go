package rapidpro

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

type LoadResult struct {
	Table         string
	RowsLoaded    int
	ErrorMessages []string
}

// Warehouse the tables are loaded into
type Destination interface {
	// Zero time when the table doesn't exist yet or has no rows
	LastTimestamp(ctx context.Context, table string, column string) (time.Time, error)
	// Replaces or appends records depending on table.LoadMode
	Load(ctx context.Context, table *Table, records []Record) (LoadResult, error)
	Close() error
}

func NewDestination(ctx context.Context, config *Config, syncId string) (Destination, error) {
	baseConfig := config.BaseConfig

	switch baseConfig.Destination {
	case common.DESTINATION_BIGQUERY:
		return NewBigQueryDestination(ctx, config, syncId)
	case common.DESTINATION_TRINO:
		return NewTrinoDestination(ctx, config)
	case common.DESTINATION_POSTGRES:
		return NewPostgresDestination(ctx, config)
	case common.DESTINATION_DUCKDB:
		return NewDuckdbDestination(ctx, config)
	}

	return nil, fmt.Errorf("unknown destination: %s", baseConfig.Destination)
}

// Table and column names are fixed or come from the contact fields file, quoting them is enough
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quotedColumnNames(table *Table) string {
	quotedNames := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		quotedNames[i] = quoteIdentifier(column.Name)
	}
	return strings.Join(quotedNames, ", ")
}
