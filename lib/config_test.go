package rapidpro

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

func validBigQueryConfig() *Config {
	config := testConfig()
	config.BaseConfig.LogLevel = ""
	config.BaseConfig.Destination = ""
	config.BaseConfig.BigQuery = common.BigQueryConfig{KeyPath: common.DEFAULT_BIGQUERY_KEY_PATH, Dataset: "rapidpro"}
	config.RapidproUrl = "https://rapidpro.example.org/"
	return config
}

func TestConfigValidate(t *testing.T) {
	t.Run("Applies defaults", func(t *testing.T) {
		config := validBigQueryConfig()

		require.NoError(t, config.Validate())
		assert.Equal(t, common.DEFAULT_LOG_LEVEL, config.BaseConfig.LogLevel)
		assert.Equal(t, common.DESTINATION_BIGQUERY, config.BaseConfig.Destination)
		assert.Equal(t, common.DEFAULT_AWS_S3_ENDPOINT, config.BaseConfig.Aws.S3Endpoint)
		assert.Equal(t, "https://rapidpro.example.org", config.RapidproUrl)
		assert.Equal(t, ARCHIVE_FORMAT_NDJSON, config.ArchiveFormat)
	})

	t.Run("Accepts a token secret ID instead of a token", func(t *testing.T) {
		config := validBigQueryConfig()
		config.RapidproToken = ""
		config.RapidproTokenSecretId = "prod/rapidpro"

		assert.NoError(t, config.Validate())
	})

	t.Run("Defaults the schema per destination", func(t *testing.T) {
		config := testConfig()
		config.BaseConfig.Destination = common.DESTINATION_POSTGRES
		config.BaseConfig.PostgresDatabaseUrl = "postgres://localhost:5432/warehouse"
		require.NoError(t, config.Validate())
		assert.Equal(t, "public", config.BaseConfig.DestinationSchemaName)

		config = testConfig()
		config.BaseConfig.DuckdbPath = "rapidpro.duckdb"
		require.NoError(t, config.Validate())
		assert.Equal(t, "main", config.BaseConfig.DestinationSchemaName)
	})

	t.Run("Skips destination settings on a dry run", func(t *testing.T) {
		config := testConfig()
		config.BaseConfig.Destination = common.DESTINATION_TRINO
		config.DryRun = true

		assert.NoError(t, config.Validate())
	})

	for _, testCase := range []struct {
		name          string
		modify        func(config *Config)
		expectedError string
	}{
		{"Requires a RapidPro URL", func(config *Config) { config.RapidproUrl = "" }, "RapidPro URL is required"},
		{"Requires a token", func(config *Config) { config.RapidproToken = "" }, "RapidPro API token or token secret ID is required"},
		{"Rejects an invalid log level", func(config *Config) { config.BaseConfig.LogLevel = "VERBOSE" }, "invalid log level VERBOSE. Must be one of TRACE, DEBUG, WARN, INFO, ERROR"},
		{"Rejects unknown tables", func(config *Config) { config.Tables = []string{"contacts"} }, "unknown table contacts. Must be one of flows, flow_runs, flow_run_values, groups, contacts_raw, group_contacts"},
		{"Rejects an unknown destination", func(config *Config) { config.BaseConfig.Destination = "redshift" }, "unknown destination redshift. Must be one of bigquery, trino, postgres, duckdb"},
		{"Requires a BigQuery dataset", func(config *Config) { config.BaseConfig.BigQuery.Dataset = "" }, "BigQuery dataset is required"},
		{"Requires a BigQuery key path", func(config *Config) { config.BaseConfig.BigQuery.KeyPath = "" }, "BigQuery key path is required"},
		{"Requires both AWS keys", func(config *Config) { config.BaseConfig.Aws.AccessKeyId = "AKIA" }, "AWS secret access key is required"},
		{"Requires Trino settings", func(config *Config) { config.BaseConfig.Destination = common.DESTINATION_TRINO }, "Trino database URL is required"},
		{"Rejects an unknown archive format", func(config *Config) { config.ArchiveFormat = "avro" }, "unknown archive format avro. Must be one of ndjson, parquet"},
		{"Requires a DuckDB path", func(config *Config) { config.BaseConfig.Destination = common.DESTINATION_DUCKDB }, "DuckDB path is required"},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			config := validBigQueryConfig()
			testCase.modify(config)

			assert.EqualError(t, config.Validate(), testCase.expectedError)
		})
	}
}

func TestSelectedTables(t *testing.T) {
	t.Run("Selects all tables by default", func(t *testing.T) {
		assert.Equal(t, len(TABLE_NAMES), len(testConfig().SelectedTables()))
	})

	t.Run("Selects the configured tables", func(t *testing.T) {
		config := testConfig()
		config.Tables = []string{TABLE_GROUPS}

		assert.Equal(t, []string{TABLE_GROUPS}, common.SortedKeys(config.SelectedTables()))
	})
}

func TestRootCmd(t *testing.T) {
	t.Run("Reads flags", func(t *testing.T) {
		rootCmd, config := NewRootCmd()

		require.NoError(t, rootCmd.ParseFlags([]string{
			"--rapidpro-url", "https://textit.example.org",
			"--destination", "duckdb",
			"--tables", "groups,contacts_raw",
			"--import-flow-data=false",
			"--archive-format", "parquet",
			"--dry-run",
		}))

		assert.Equal(t, "https://textit.example.org", config.RapidproUrl)
		assert.Equal(t, common.DESTINATION_DUCKDB, config.BaseConfig.Destination)
		assert.Equal(t, []string{TABLE_GROUPS, TABLE_CONTACTS}, config.Tables)
		assert.False(t, config.ImportFlowData)
		assert.Equal(t, ARCHIVE_FORMAT_PARQUET, config.ArchiveFormat)
		assert.True(t, config.DryRun)
	})

	t.Run("Parses boolean environment variables", func(t *testing.T) {
		for _, testCase := range []struct {
			value    string
			expected bool
		}{
			{"0", false},
			{"False", false},
			{"FALSE", false},
			{"1", true},
			{"true", true},
		} {
			t.Setenv(ENV_IMPORT_FLOW_DATA, testCase.value)
			t.Setenv(common.ENV_DATADOG_ENABLED, testCase.value)
			rootCmd, config := NewRootCmd()

			require.NoError(t, rootCmd.ParseFlags([]string{}))
			assert.Equal(t, testCase.expected, config.ImportFlowData, "IMPORT_FLOW_DATA=%s", testCase.value)
			assert.Equal(t, testCase.expected, config.BaseConfig.DatadogEnabled, "DATADOG_ENABLED=%s", testCase.value)
		}
	})

	t.Run("Uses boolean defaults when the environment variables are unset", func(t *testing.T) {
		t.Setenv(ENV_IMPORT_FLOW_DATA, "")
		t.Setenv(common.ENV_DATADOG_ENABLED, "")
		_, config := NewRootCmd()

		assert.True(t, config.ImportFlowData)
		assert.False(t, config.BaseConfig.DatadogEnabled)
	})

	t.Run("Rejects an invalid boolean environment variable", func(t *testing.T) {
		t.Setenv(ENV_IMPORT_FLOW_DATA, "maybe")
		t.Setenv(ENV_RAPIDPRO_URL, "https://rapidpro.example.org")
		rootCmd, _ := NewRootCmd()
		rootCmd.SetArgs([]string{"--rapidpro-token", "secret-token", "--dry-run"})

		err := rootCmd.Execute()

		require.EqualError(t, err, `invalid IMPORT_FLOW_DATA value "maybe". Must be true or false`)
	})

	t.Run("Returns validation errors before syncing", func(t *testing.T) {
		t.Setenv(ENV_RAPIDPRO_URL, "")
		rootCmd, _ := NewRootCmd()
		rootCmd.SetArgs([]string{"--rapidpro-token", "secret-token"})

		err := rootCmd.Execute()

		require.EqualError(t, err, "RapidPro URL is required")
	})

	t.Run("Prints the version", func(t *testing.T) {
		rootCmd, _ := NewRootCmd()
		var output bytes.Buffer
		rootCmd.SetOut(&output)
		rootCmd.SetArgs([]string{"version"})

		require.NoError(t, rootCmd.Execute())
		assert.Equal(t, "syncer-rapidpro "+common.VERSION+"\n", output.String())
	})
}
