package rapidpro

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

const (
	ENV_RAPIDPRO_URL             = "RAPIDPRO_URL"
	ENV_RAPIDPRO_TOKEN           = "RAPIDPRO_TOKEN"
	ENV_RAPIDPRO_TOKEN_SECRET_ID = "RAPIDPRO_TOKEN_SECRET_ID"
	ENV_CONTACT_FIELDS_FILE      = "CONTACT_FIELDS_FILE"
	ENV_IMPORT_FLOW_DATA         = "IMPORT_FLOW_DATA"
	ENV_ARCHIVE_FORMAT           = "ARCHIVE_FORMAT"
)

type Config struct {
	BaseConfig            *common.BaseConfig
	RapidproUrl           string
	RapidproToken         string
	RapidproTokenSecretId string // optional, AWS Secrets Manager secret holding the token
	ContactFieldsFile     string // optional, {"column": "TYPE"} of contact fields to import
	ImportFlowData        bool
	Tables                []string // optional, subset of TABLE_NAMES to load
	ArchiveFormat         string   // ndjson or parquet, used with an S3 bucket
	DryRun                bool

	envError error
}

func registerFlags(cmd *cobra.Command, config *Config) {
	config.BaseConfig = &common.BaseConfig{}
	flags := cmd.Flags()

	flags.StringVar(&config.BaseConfig.LogLevel, "log-level", os.Getenv(common.ENV_LOG_LEVEL), `Log level: "ERROR", "WARN", "INFO", "DEBUG", "TRACE". Default: "`+common.DEFAULT_LOG_LEVEL+`"`)
	flags.StringVar(&config.BaseConfig.Destination, "destination", os.Getenv(common.ENV_DESTINATION), `Destination warehouse: "`+strings.Join(common.DESTINATIONS, `", "`)+`". Default: "`+common.DEFAULT_DESTINATION+`"`)
	flags.StringVar(&config.BaseConfig.DestinationSchemaName, "destination-schema-name", os.Getenv(common.ENV_DESTINATION_SCHEMA_NAME), "Destination schema name to store the synced data (Trino, Postgres, DuckDB)")
	flags.StringVar(&config.BaseConfig.BigQuery.KeyPath, "bigquery-key-path", envOrDefault(common.ENV_BIGQUERY_KEY_PATH, common.DEFAULT_BIGQUERY_KEY_PATH), "BigQuery service account key file")
	flags.StringVar(&config.BaseConfig.BigQuery.Dataset, "bigquery-dataset", os.Getenv(common.ENV_BIGQUERY_DATASET), "BigQuery dataset to sync to")
	flags.StringVar(&config.BaseConfig.Trino.DatabaseUrl, "trino-database-url", os.Getenv(common.ENV_TRINO_DATABASE_URL), "Trino database URL to sync to")
	flags.StringVar(&config.BaseConfig.Trino.CatalogName, "trino-catalog-name", os.Getenv(common.ENV_TRINO_CATALOG_NAME), "Trino catalog name")
	flags.StringVar(&config.BaseConfig.PostgresDatabaseUrl, "postgres-database-url", os.Getenv(common.ENV_POSTGRES_DATABASE_URL), "Postgres database URL to sync to")
	flags.StringVar(&config.BaseConfig.DuckdbPath, "duckdb-path", os.Getenv(common.ENV_DUCKDB_PATH), "DuckDB database file to sync to")
	flags.StringVar(&config.BaseConfig.Aws.Region, "aws-region", os.Getenv(common.ENV_AWS_REGION), "AWS region")
	flags.StringVar(&config.BaseConfig.Aws.S3Endpoint, "aws-s3-endpoint", os.Getenv(common.ENV_AWS_S3_ENDPOINT), "AWS S3 endpoint. Default: \""+common.DEFAULT_AWS_S3_ENDPOINT+`"`)
	flags.StringVar(&config.BaseConfig.Aws.S3Bucket, "aws-s3-bucket", os.Getenv(common.ENV_AWS_S3_BUCKET), "AWS S3 bucket to archive the extracted records to (optional)")
	flags.StringVar(&config.BaseConfig.Aws.S3Prefix, "aws-s3-prefix", envOrDefault(common.ENV_AWS_S3_PREFIX, common.DEFAULT_AWS_S3_PREFIX), "AWS S3 key prefix for archived records")
	flags.StringVar(&config.ArchiveFormat, "archive-format", os.Getenv(ENV_ARCHIVE_FORMAT), `Archive object format: "`+strings.Join(ARCHIVE_FORMATS, `", "`)+`". Default: "`+DEFAULT_ARCHIVE_FORMAT+`"`)
	flags.StringVar(&config.BaseConfig.Aws.AccessKeyId, "aws-access-key-id", os.Getenv(common.ENV_AWS_ACCESS_KEY_ID), "AWS access key ID")
	flags.StringVar(&config.BaseConfig.Aws.SecretAccessKey, "aws-secret-access-key", os.Getenv(common.ENV_AWS_SECRET_ACCESS_KEY), "AWS secret access key")
	flags.BoolVar(&config.BaseConfig.DatadogEnabled, "datadog", config.boolEnvOrDefault(common.ENV_DATADOG_ENABLED, false), "Submit sync metrics to Datadog (uses DD_API_KEY and DD_SITE)")

	flags.StringVar(&config.RapidproUrl, "rapidpro-url", os.Getenv(ENV_RAPIDPRO_URL), "RapidPro base URL, e.g. https://rapidpro.io")
	flags.StringVar(&config.RapidproToken, "rapidpro-token", os.Getenv(ENV_RAPIDPRO_TOKEN), "RapidPro API token")
	flags.StringVar(&config.RapidproTokenSecretId, "rapidpro-token-secret-id", os.Getenv(ENV_RAPIDPRO_TOKEN_SECRET_ID), "AWS Secrets Manager secret ID holding the RapidPro API token")
	flags.StringVar(&config.ContactFieldsFile, "contact-fields-file", os.Getenv(ENV_CONTACT_FIELDS_FILE), `JSON file mapping contact fields to column types, e.g. {"urn": "STRING"}`)
	flags.BoolVar(&config.ImportFlowData, "import-flow-data", config.boolEnvOrDefault(ENV_IMPORT_FLOW_DATA, true), "Import flows, flow runs and flow run values")
	flags.StringSliceVar(&config.Tables, "tables", nil, "Tables to load: "+strings.Join(TABLE_NAMES, ", ")+". Default: all")
	flags.BoolVar(&config.DryRun, "dry-run", false, "Fetch and transform records without loading them")
}

func (config *Config) Validate() error {
	baseConfig := config.BaseConfig

	if config.envError != nil {
		return config.envError
	}

	if baseConfig.LogLevel == "" {
		baseConfig.LogLevel = common.DEFAULT_LOG_LEVEL
	} else if !slices.Contains(common.LOG_LEVELS, baseConfig.LogLevel) {
		return errors.New("invalid log level " + baseConfig.LogLevel + ". Must be one of " + strings.Join(common.LOG_LEVELS, ", "))
	}

	if config.RapidproUrl == "" {
		return errors.New("RapidPro URL is required")
	}
	config.RapidproUrl = strings.TrimRight(config.RapidproUrl, "/")
	if config.RapidproToken == "" && config.RapidproTokenSecretId == "" {
		return errors.New("RapidPro API token or token secret ID is required")
	}

	for _, table := range config.Tables {
		if !slices.Contains(TABLE_NAMES, table) {
			return errors.New("unknown table " + table + ". Must be one of " + strings.Join(TABLE_NAMES, ", "))
		}
	}

	if baseConfig.Aws.AccessKeyId != "" && baseConfig.Aws.SecretAccessKey == "" {
		return errors.New("AWS secret access key is required")
	}
	if baseConfig.Aws.AccessKeyId == "" && baseConfig.Aws.SecretAccessKey != "" {
		return errors.New("AWS access key ID is required")
	}
	if baseConfig.Aws.S3Endpoint == "" {
		baseConfig.Aws.S3Endpoint = common.DEFAULT_AWS_S3_ENDPOINT
	}
	if config.ArchiveFormat == "" {
		config.ArchiveFormat = DEFAULT_ARCHIVE_FORMAT
	} else if !slices.Contains(ARCHIVE_FORMATS, config.ArchiveFormat) {
		return errors.New("unknown archive format " + config.ArchiveFormat + ". Must be one of " + strings.Join(ARCHIVE_FORMATS, ", "))
	}

	if config.DryRun {
		return nil
	}

	if baseConfig.Destination == "" {
		baseConfig.Destination = common.DEFAULT_DESTINATION
	}
	switch baseConfig.Destination {
	case common.DESTINATION_BIGQUERY:
		if baseConfig.BigQuery.KeyPath == "" {
			return errors.New("BigQuery key path is required")
		}
		if baseConfig.BigQuery.Dataset == "" {
			return errors.New("BigQuery dataset is required")
		}
	case common.DESTINATION_TRINO:
		if baseConfig.Trino.DatabaseUrl == "" {
			return errors.New("Trino database URL is required")
		}
		if baseConfig.Trino.CatalogName == "" {
			return errors.New("Trino catalog name is required")
		}
		if baseConfig.DestinationSchemaName == "" {
			return errors.New("destination schema name is required")
		}
	case common.DESTINATION_POSTGRES:
		if baseConfig.PostgresDatabaseUrl == "" {
			return errors.New("Postgres database URL is required")
		}
		if baseConfig.DestinationSchemaName == "" {
			baseConfig.DestinationSchemaName = "public"
		}
	case common.DESTINATION_DUCKDB:
		if baseConfig.DuckdbPath == "" {
			return errors.New("DuckDB path is required")
		}
		if baseConfig.DestinationSchemaName == "" {
			baseConfig.DestinationSchemaName = "main"
		}
	default:
		return errors.New("unknown destination " + baseConfig.Destination + ". Must be one of " + strings.Join(common.DESTINATIONS, ", "))
	}

	return nil
}

// All tables when none were selected
func (config *Config) SelectedTables() common.Set[string] {
	if len(config.Tables) == 0 {
		return common.NewSet[string]().AddAll(TABLE_NAMES)
	}
	return common.NewSet[string]().AddAll(config.Tables)
}

func envOrDefault(name string, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

// Keeps the first invalid value for Validate
func (config *Config) boolEnvOrDefault(name string, defaultValue bool) bool {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue
	}

	parsedValue, err := strconv.ParseBool(value)
	if err != nil {
		if config.envError == nil {
			config.envError = fmt.Errorf("invalid %s value %q. Must be true or false", name, value)
		}
		return defaultValue
	}
	return parsedValue
}
