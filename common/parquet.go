package common

import (
	"encoding/json"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const (
	PARQUET_PARALLEL_NUMBER  = 4
	PARQUET_ROW_GROUP_SIZE   = 128 * 1024 * 1024 // 128 MB
	PARQUET_PAGE_SIZE        = 8 * 1024          // 8 KB
	PARQUET_COMPRESSION_TYPE = parquet.CompressionCodec_ZSTD
)

type ParquetSchemaField struct {
	Tag    string
	Fields []ParquetSchemaField `json:",omitempty"`
}

func BuildParquetSchemaJson(config *BaseConfig, fields []ParquetSchemaField) string {
	schemaJson, err := json.Marshal(ParquetSchemaField{Tag: "name=root, repetitiontype=REQUIRED", Fields: fields})
	PanicIfError(config, err)
	return string(schemaJson)
}

// Writes values as Parquet rows into a capped buffer from a separate goroutine and returns the buffer to read from.
// The file is only complete once the writer stops, so the footer is the last thing the reader gets.
func StreamParquet[T any](config *BaseConfig, schemaJson string, values []T, toRow func(T) map[string]interface{}) *CappedBuffer {
	cappedBuffer := NewCappedBuffer(config, DEFAULT_CAPPED_BUFFER_SIZE)

	go func() {
		err := writeParquet(config, cappedBuffer, schemaJson, values, toRow)
		cappedBuffer.CloseWithError(err)
	}()

	return cappedBuffer
}

func writeParquet[T any](config *BaseConfig, cappedBuffer *CappedBuffer, schemaJson string, values []T, toRow func(T) map[string]interface{}) error {
	LogDebug(config, "Parquet schema:", schemaJson)
	parquetWriter, err := writer.NewJSONWriter(schemaJson, writerfile.NewWriterFile(cappedBuffer), PARQUET_PARALLEL_NUMBER)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	parquetWriter.RowGroupSize = PARQUET_ROW_GROUP_SIZE
	parquetWriter.PageSize = PARQUET_PAGE_SIZE
	parquetWriter.CompressionType = PARQUET_COMPRESSION_TYPE

	for _, value := range values {
		rowJson, err := json.Marshal(toRow(value))
		if err != nil {
			return err
		}
		if err = parquetWriter.Write(string(rowJson)); err != nil {
			return fmt.Errorf("failed to write Parquet row: %w", err)
		}
	}

	if err := parquetWriter.WriteStop(); err != nil {
		return fmt.Errorf("failed to stop Parquet writer: %w", err)
	}
	return nil
}
