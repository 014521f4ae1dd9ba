package common

const (
	VERSION = "1.0.0"

	ENV_LOG_LEVEL = "BEMIDB_LOG_LEVEL"

	ENV_DESTINATION             = "DESTINATION"
	ENV_DESTINATION_SCHEMA_NAME = "DESTINATION_SCHEMA_NAME"

	ENV_BIGQUERY_KEY_PATH = "BQ_KEY_PATH"
	ENV_BIGQUERY_DATASET  = "BQ_DATASET"

	ENV_TRINO_DATABASE_URL = "TRINO_DATABASE_URL"
	ENV_TRINO_CATALOG_NAME = "TRINO_CATALOG_NAME"

	ENV_POSTGRES_DATABASE_URL = "POSTGRES_DATABASE_URL"

	ENV_DUCKDB_PATH = "DUCKDB_PATH"

	ENV_AWS_REGION            = "AWS_REGION"
	ENV_AWS_S3_ENDPOINT       = "AWS_S3_ENDPOINT"
	ENV_AWS_S3_BUCKET         = "AWS_S3_BUCKET"
	ENV_AWS_S3_PREFIX         = "AWS_S3_PREFIX"
	ENV_AWS_ACCESS_KEY_ID     = "AWS_ACCESS_KEY_ID"
	ENV_AWS_SECRET_ACCESS_KEY = "AWS_SECRET_ACCESS_KEY"

	ENV_DATADOG_ENABLED = "DATADOG_ENABLED"

	DEFAULT_LOG_LEVEL         = "INFO"
	DEFAULT_DESTINATION       = DESTINATION_BIGQUERY
	DEFAULT_BIGQUERY_KEY_PATH = "bigquery/bq_credentials.json"
	DEFAULT_AWS_S3_ENDPOINT   = "s3.amazonaws.com"
	DEFAULT_AWS_S3_PREFIX     = "rapidpro"

	DESTINATION_BIGQUERY = "bigquery"
	DESTINATION_TRINO    = "trino"
	DESTINATION_POSTGRES = "postgres"
	DESTINATION_DUCKDB   = "duckdb"
)

var DESTINATIONS = []string{
	DESTINATION_BIGQUERY,
	DESTINATION_TRINO,
	DESTINATION_POSTGRES,
	DESTINATION_DUCKDB,
}

type BigQueryConfig struct {
	KeyPath string
	Dataset string
}

type TrinoConfig struct {
	DatabaseUrl string
	CatalogName string
}

type AwsConfig struct {
	Region          string
	S3Endpoint      string // optional
	S3Bucket        string // optional, enables archiving
	S3Prefix        string
	AccessKeyId     string
	SecretAccessKey string
}

type BaseConfig struct {
	LogLevel              string
	Destination           string
	DestinationSchemaName string
	BigQuery              BigQueryConfig
	Trino                 TrinoConfig
	PostgresDatabaseUrl   string
	DuckdbPath            string
	Aws                   AwsConfig
	DatadogEnabled        bool
}
