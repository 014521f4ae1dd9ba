package rapidpro

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

const (
	ARCHIVE_FORMAT_NDJSON  = "ndjson"
	ARCHIVE_FORMAT_PARQUET = "parquet"

	DEFAULT_ARCHIVE_FORMAT = ARCHIVE_FORMAT_NDJSON
)

var ARCHIVE_FORMATS = []string{ARCHIVE_FORMAT_NDJSON, ARCHIVE_FORMAT_PARQUET}

var ARCHIVE_CONTENT_TYPES = map[string]string{
	ARCHIVE_FORMAT_NDJSON:  "application/x-ndjson",
	ARCHIVE_FORMAT_PARQUET: "application/vnd.apache.parquet",
}

type ObjectUploader interface {
	UploadObject(ctx context.Context, fileKey string, contentType string, body io.Reader) error
}

// Raw landing copy of every loaded batch, one NDJSON or Parquet object per table and sync
type Archive struct {
	Config   *Config
	Uploader ObjectUploader
	SyncId   string
	now      func() time.Time
}

// Nil when no S3 bucket is configured
func NewArchive(ctx context.Context, config *Config, syncId string) (*Archive, error) {
	if config.BaseConfig.Aws.S3Bucket == "" {
		return nil, nil
	}

	s3Client, err := common.NewS3Client(ctx, config.BaseConfig)
	if err != nil {
		return nil, err
	}

	return newArchive(config, s3Client, syncId), nil
}

func newArchive(config *Config, uploader ObjectUploader, syncId string) *Archive {
	return &Archive{
		Config:   config,
		Uploader: uploader,
		SyncId:   syncId,
		now:      time.Now,
	}
}

// {prefix}/{table}/{YYYY-MM-DD}/{sync-id}.{format}
func (archive *Archive) ObjectKey(table string) string {
	prefix := strings.Trim(archive.Config.BaseConfig.Aws.S3Prefix, "/")
	return path.Join(prefix, table, archive.now().UTC().Format("2006-01-02"), archive.SyncId+"."+archive.format())
}

func (archive *Archive) format() string {
	if archive.Config.ArchiveFormat == "" {
		return DEFAULT_ARCHIVE_FORMAT
	}
	return archive.Config.ArchiveFormat
}

func (archive *Archive) Upload(ctx context.Context, table *Table, records []Record) error {
	if archive == nil {
		return nil
	}

	var cappedBuffer *common.CappedBuffer
	switch archive.format() {
	case ARCHIVE_FORMAT_NDJSON:
		cappedBuffer = common.StreamNdjson(archive.Config.BaseConfig, records, func(record Record) interface{} {
			return table.JsonRow(record)
		})
	case ARCHIVE_FORMAT_PARQUET:
		schemaJson := common.BuildParquetSchemaJson(archive.Config.BaseConfig, parquetSchemaFields(table))
		cappedBuffer = common.StreamParquet(archive.Config.BaseConfig, schemaJson, records, table.ParquetRow)
	default:
		return fmt.Errorf("unknown archive format %s", archive.format())
	}
	defer cappedBuffer.Close()

	fileKey := archive.ObjectKey(table.Name)
	common.LogDebug(archive.Config.BaseConfig, "Archiving", len(records), table.Name, "to", fileKey)
	return archive.Uploader.UploadObject(ctx, fileKey, ARCHIVE_CONTENT_TYPES[archive.format()], cappedBuffer)
}

// Nullable columns, repeated columns as required lists of required elements
func parquetSchemaFields(table *Table) []common.ParquetSchemaField {
	fields := make([]common.ParquetSchemaField, 0, len(table.Columns))
	for _, column := range table.Columns {
		if column.Repeated {
			fields = append(fields, common.ParquetSchemaField{
				Tag:    "name=" + column.Name + ", type=LIST, repetitiontype=REQUIRED",
				Fields: []common.ParquetSchemaField{{Tag: "name=element, " + parquetType(column.Type) + ", repetitiontype=REQUIRED"}},
			})
			continue
		}
		fields = append(fields, common.ParquetSchemaField{
			Tag: "name=" + column.Name + ", " + parquetType(column.Type) + ", repetitiontype=OPTIONAL",
		})
	}
	return fields
}

func parquetType(columnType ColumnType) string {
	switch columnType {
	case ColumnTypeTimestamp:
		return "type=INT64, convertedtype=TIMESTAMP_MICROS"
	case ColumnTypeBoolean:
		return "type=BOOLEAN"
	case ColumnTypeInteger:
		return "type=INT64"
	}
	return "type=BYTE_ARRAY, convertedtype=UTF8"
}
