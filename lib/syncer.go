package rapidpro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

type Syncer struct {
	Config        *Config
	Source        Source
	Destination   Destination // nil on dry runs
	Archive       *Archive    // nil when archiving is off
	Metrics       *Metrics    // nil when Datadog is off
	ContactsTable *Table
}

type tableBatch struct {
	table   *Table
	records []Record
}

func NewSyncer(config *Config, source Source, destination Destination, archive *Archive, metrics *Metrics, contactsTable *Table) *Syncer {
	return &Syncer{
		Config:        config,
		Source:        source,
		Destination:   destination,
		Archive:       archive,
		Metrics:       metrics,
		ContactsTable: contactsTable,
	}
}

// Fetches everything first, then loads table by table.
// A failed table load doesn't stop the next tables, all load errors are returned at the end.
func (syncer *Syncer) Sync(ctx context.Context) error {
	startedAt := time.Now()
	selectedTables := syncer.Config.SelectedTables()
	batches := []tableBatch{}

	common.LogInfo(syncer.Config.BaseConfig, "Start")

	if syncer.Config.ImportFlowData && containsAny(selectedTables, TABLE_FLOWS, TABLE_FLOW_RUNS, TABLE_FLOW_RUN_VALUES) {
		flowBatches, err := syncer.fetchFlows(ctx)
		if err != nil {
			return err
		}
		batches = append(batches, flowBatches...)
	}

	if containsAny(selectedTables, TABLE_GROUPS, TABLE_CONTACTS, TABLE_GROUP_CONTACTS) {
		contactBatches, err := syncer.fetchContacts(ctx)
		if err != nil {
			return err
		}
		batches = append(batches, contactBatches...)
	}

	loadErrors := []error{}
	for _, batch := range batches {
		if !selectedTables.Contains(batch.table.Name) {
			common.LogDebug(syncer.Config.BaseConfig, "Skipping", batch.table.Name)
			continue
		}

		if err := syncer.uploadBatch(ctx, batch); err != nil {
			loadErrors = append(loadErrors, err)
		}
	}

	syncer.Metrics.SetDuration(time.Since(startedAt))
	if err := syncer.Metrics.Flush(ctx); err != nil {
		common.LogWarn(syncer.Config.BaseConfig, "Failed to submit metrics to Datadog:", err)
	}

	common.LogInfo(syncer.Config.BaseConfig, "Done")
	return errors.Join(loadErrors...)
}

func (syncer *Syncer) fetchFlows(ctx context.Context) ([]tableBatch, error) {
	lastRunCreatedOn, err := syncer.lastTimestamp(ctx, FlowRunsTable())
	if err != nil {
		return nil, err
	}

	common.LogInfo(syncer.Config.BaseConfig, "Fetching flows")
	flows, err := syncer.Source.Flows(ctx)
	if err != nil {
		return nil, err
	}

	common.LogInfo(syncer.Config.BaseConfig, "Fetching flow runs and values")
	runRecords := []Record{}
	valueRecords := []Record{}
	for _, flow := range flows {
		err := syncer.Source.Runs(ctx, flow.Uuid, lastRunCreatedOn, func(runs []Run) error {
			pageRunRecords, pageValueRecords := RunRecords(runs)
			runRecords = append(runRecords, pageRunRecords...)
			valueRecords = append(valueRecords, pageValueRecords...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	common.LogInfo(syncer.Config.BaseConfig, "Done with flows")

	return []tableBatch{
		{table: FlowsTable(), records: FlowRecords(flows)},
		{table: FlowRunsTable(), records: runRecords},
		{table: FlowRunValuesTable(), records: valueRecords},
	}, nil
}

func (syncer *Syncer) fetchContacts(ctx context.Context) ([]tableBatch, error) {
	lastContactModifiedOn, err := syncer.lastTimestamp(ctx, syncer.ContactsTable)
	if err != nil {
		return nil, err
	}

	common.LogInfo(syncer.Config.BaseConfig, "Fetching groups...")
	groups, err := syncer.Source.Groups(ctx)
	if err != nil {
		return nil, err
	}
	common.LogInfo(syncer.Config.BaseConfig, "Groups:", len(groups))

	common.LogInfo(syncer.Config.BaseConfig, "Fetching contacts and contact groups...")
	contacts, err := syncer.Source.Contacts(ctx, lastContactModifiedOn)
	if err != nil {
		return nil, err
	}
	contactRecords, groupContactRecords := ContactRecords(contacts, syncer.ContactsTable)
	common.LogInfo(syncer.Config.BaseConfig, "Contacts:", len(contactRecords))
	common.LogInfo(syncer.Config.BaseConfig, "Group Contacts:", len(groupContactRecords))

	return []tableBatch{
		{table: GroupsTable(), records: GroupRecords(groups)},
		{table: syncer.ContactsTable, records: contactRecords},
		{table: GroupContactsTable(), records: groupContactRecords},
	}, nil
}

// Zero time (full sync) on dry runs without a destination
func (syncer *Syncer) lastTimestamp(ctx context.Context, table *Table) (time.Time, error) {
	if syncer.Destination == nil {
		return time.Time{}, nil
	}

	lastTimestamp, err := syncer.Destination.LastTimestamp(ctx, table.Name, table.CursorColumn)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to find the last %s.%s: %w", table.Name, table.CursorColumn, err)
	}

	if !lastTimestamp.IsZero() {
		common.LogInfo(syncer.Config.BaseConfig, "Last", table.Name+"."+table.CursorColumn, "found:", common.TimeToWatermark(lastTimestamp))
	}
	return lastTimestamp, nil
}

func (syncer *Syncer) uploadBatch(ctx context.Context, batch tableBatch) error {
	tableName := batch.table.Name
	syncer.Metrics.Count(METRIC_RECORDS_FETCHED, tableName, len(batch.records))

	common.LogInfo(syncer.Config.BaseConfig, "Uploading", len(batch.records), tableName)
	if syncer.Config.DryRun {
		return nil
	}

	var archiveErr error
	if err := syncer.Archive.Upload(ctx, batch.table, batch.records); err != nil {
		common.LogError(syncer.Config.BaseConfig, "Failed to archive", tableName+":", err)
		archiveErr = fmt.Errorf("failed to archive %s: %w", tableName, err)
	}

	result, err := syncer.Destination.Load(ctx, batch.table, batch.records)
	if err != nil {
		common.LogError(syncer.Config.BaseConfig, "Failed to load", tableName+":", err)
		syncer.Metrics.Count(METRIC_LOAD_ERRORS, tableName, max(1, len(result.ErrorMessages)))
		return errors.Join(archiveErr, fmt.Errorf("failed to load %s: %w", tableName, err))
	}

	syncer.Metrics.Count(METRIC_RECORDS_LOADED, tableName, result.RowsLoaded)
	return archiveErr
}

func containsAny(set common.Set[string], values ...string) bool {
	for _, value := range values {
		if set.Contains(value) {
			return true
		}
	}
	return false
}
