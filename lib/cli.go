package rapidpro

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

// The returned config is filled in once the command parses its flags
func NewRootCmd() (*cobra.Command, *Config) {
	config := &Config{}

	rootCmd := &cobra.Command{
		Use:   "syncer-rapidpro",
		Short: "Incrementally sync RapidPro contacts, groups, flows and flow runs to a warehouse",
		Long: `syncer-rapidpro fetches records from the RapidPro API v2 that are newer than the latest
timestamp already loaded, flattens them into fixed table schemas and loads them into
BigQuery, Trino, Postgres or DuckDB.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			return RunSync(cmd.Context(), config)
		},
	}
	registerFlags(rootCmd, config)

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd, config
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "syncer-rapidpro", common.VERSION)
		},
	}
}

func RunSync(ctx context.Context, config *Config) error {
	token := config.RapidproToken
	if config.RapidproTokenSecretId != "" {
		secretsManagerApi, err := NewSecretsManagerApi(ctx, config)
		if err != nil {
			return err
		}
		token, err = ResolveRapidproToken(ctx, config, secretsManagerApi)
		if err != nil {
			return err
		}
	}

	contactColumns, err := LoadContactColumns(config.ContactFieldsFile)
	if err != nil {
		return err
	}

	syncId := uuid.New().String()
	common.LogDebug(config.BaseConfig, "Sync ID:", syncId)

	var destination Destination
	var archive *Archive
	if !config.DryRun {
		destination, err = NewDestination(ctx, config, syncId)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", config.BaseConfig.Destination, err)
		}
		defer destination.Close()

		archive, err = NewArchive(ctx, config, syncId)
		if err != nil {
			return err
		}
	}

	syncer := NewSyncer(
		config,
		NewRapidpro(config, token),
		destination,
		archive,
		NewMetrics(config),
		ContactsTable(contactColumns),
	)
	return syncer.Sync(ctx)
}
