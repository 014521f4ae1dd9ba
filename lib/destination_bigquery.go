package rapidpro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

type BigQueryDestination struct {
	Config  *Config
	Client  *bigquery.Client
	Dataset *bigquery.Dataset
	SyncId  string
}

// The project comes from the service account key
func NewBigQueryDestination(ctx context.Context, config *Config, syncId string) (*BigQueryDestination, error) {
	keyPath := config.BaseConfig.BigQuery.KeyPath
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read BigQuery key file '%s': %w", keyPath, err)
	}

	credentials, err := google.CredentialsFromJSON(ctx, key, bigquery.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse BigQuery key file '%s': %w", keyPath, err)
	}
	if credentials.ProjectID == "" {
		return nil, fmt.Errorf("BigQuery key file '%s' has no project_id", keyPath)
	}

	client, err := bigquery.NewClient(ctx, credentials.ProjectID, option.WithCredentials(credentials))
	if err != nil {
		return nil, err
	}

	// A missing table means a full sync, a missing dataset is a configuration error
	dataset := client.Dataset(config.BaseConfig.BigQuery.Dataset)
	if _, err := dataset.Metadata(ctx); err != nil {
		client.Close()
		if isBigQueryNotFound(err) {
			return nil, fmt.Errorf("BigQuery dataset '%s' not found in project %s", dataset.DatasetID, credentials.ProjectID)
		}
		return nil, err
	}

	return &BigQueryDestination{
		Config:  config,
		Client:  client,
		Dataset: dataset,
		SyncId:  syncId,
	}, nil
}

func (destination *BigQueryDestination) LastTimestamp(ctx context.Context, table string, column string) (time.Time, error) {
	query := "SELECT max(" + bigqueryIdentifier(column) + ") FROM " + bigqueryIdentifier(destination.Dataset.DatasetID) + "." + bigqueryIdentifier(table)
	common.LogDebug(destination.Config.BaseConfig, "BigQuery query:", query)

	rowIterator, err := destination.Client.Query(query).Read(ctx)
	if err != nil {
		if isBigQueryNotFound(err) {
			common.LogInfo(destination.Config.BaseConfig, "Table", table, "does not exist yet. Starting from scratch.")
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	var row []bigquery.Value
	err = rowIterator.Next(&row)
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if len(row) == 0 {
		return time.Time{}, nil
	}

	switch value := row[0].(type) {
	case time.Time:
		return value.UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected max(%s) value in %s: %v", column, table, row[0])
}

func (destination *BigQueryDestination) Load(ctx context.Context, table *Table, records []Record) (LoadResult, error) {
	result := LoadResult{Table: table.Name}
	if table.LoadMode == LoadModeAppend && len(records) == 0 {
		return result, nil
	}

	bigqueryTable := destination.Dataset.Table(table.Name)

	cappedBuffer := common.StreamNdjson(destination.Config.BaseConfig, records, func(record Record) interface{} {
		return table.JsonRow(record)
	})
	defer cappedBuffer.Close()

	source := bigquery.NewReaderSource(cappedBuffer)
	source.SourceFormat = bigquery.JSON

	loader := bigqueryTable.LoaderFrom(source)
	loader.JobID = "rapidpro_" + table.Name + "_" + strings.ReplaceAll(destination.SyncId, "-", "_")

	switch table.LoadMode {
	case LoadModeReplace:
		loader.WriteDisposition = bigquery.WriteTruncate
		source.MaxBadRecords = 1
		source.AutoDetect = false
		// The existing table keeps its schema, a new table needs one
		if _, err := bigqueryTable.Metadata(ctx); err != nil {
			if !isBigQueryNotFound(err) {
				return result, err
			}
			source.Schema = bigquerySchema(table)
		}
	case LoadModeAppend:
		loader.WriteDisposition = bigquery.WriteAppend
		source.Schema = bigquerySchema(table)
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to start BigQuery load job for %s: %w", table.Name, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to wait for BigQuery load job for %s: %w", table.Name, err)
	}

	if status.Err() != nil {
		for _, jobError := range status.Errors {
			common.LogError(destination.Config.BaseConfig, "ERROR:", jobError.Message)
			result.ErrorMessages = append(result.ErrorMessages, jobError.Message)
		}
		return result, fmt.Errorf("BigQuery load job for %s failed: %w", table.Name, status.Err())
	}

	result.RowsLoaded = len(records)
	return result, nil
}

func (destination *BigQueryDestination) Close() error {
	return destination.Client.Close()
}

func bigquerySchema(table *Table) bigquery.Schema {
	schema := make(bigquery.Schema, 0, len(table.Columns))
	for _, column := range table.Columns {
		schema = append(schema, &bigquery.FieldSchema{
			Name:     column.Name,
			Type:     bigqueryFieldType(column.Type),
			Repeated: column.Repeated,
		})
	}
	return schema
}

func bigqueryFieldType(columnType ColumnType) bigquery.FieldType {
	switch columnType {
	case ColumnTypeTimestamp:
		return bigquery.TimestampFieldType
	case ColumnTypeBoolean:
		return bigquery.BooleanFieldType
	case ColumnTypeInteger:
		return bigquery.IntegerFieldType
	}
	return bigquery.StringFieldType
}

func bigqueryIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

func isBigQueryNotFound(err error) bool {
	var apiError *googleapi.Error
	return errors.As(err, &apiError) && apiError.Code == http.StatusNotFound
}
