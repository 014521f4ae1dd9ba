package rapidpro

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

func GroupRecords(groups []Group) []Record {
	records := make([]Record, 0, len(groups))
	for _, group := range groups {
		records = append(records, Record{
			"uuid": group.Uuid,
			"name": group.Name,
		})
	}
	return records
}

// One contacts_raw record per contact and one group_contacts record per group membership
func ContactRecords(contacts []Contact, contactsTable *Table) (contactRecords []Record, groupContactRecords []Record) {
	contactRecords = make([]Record, 0, len(contacts))
	groupContactRecords = []Record{}

	for _, contact := range contacts {
		record := Record{
			"uuid":        contact.Uuid,
			"modified_on": contact.ModifiedOn,
		}

		for _, group := range contact.Groups {
			groupContactRecords = append(groupContactRecords, Record{
				"contact_uuid": contact.Uuid,
				"group_uuid":   group.Uuid,
			})
		}

		for field, value := range contact.Fields {
			column := contactsTable.Column(field)
			if column == nil || field == "uuid" || field == "modified_on" {
				continue
			}
			record[field] = coerceValue(value, column.Type)
		}

		if record["urn"] == nil && contactsTable.Column("urn") != nil {
			if len(contact.Urns) > 0 {
				record["urn"] = contact.Urns[0]
			} else {
				record["urn"] = nil
			}
		}

		contactRecords = append(contactRecords, record)
	}

	return contactRecords, groupContactRecords
}

func FlowRecords(flows []Flow) []Record {
	records := make([]Record, 0, len(flows))
	for _, flow := range flows {
		labels := make([]string, 0, len(flow.Labels))
		for _, label := range flow.Labels {
			labels = append(labels, label.Name)
		}

		records = append(records, Record{
			"uuid":   flow.Uuid,
			"name":   flow.Name,
			"labels": labels,
		})
	}
	return records
}

// One flow_runs record per run and one flow_run_values record per run value, values ordered by key
func RunRecords(runs []Run) (runRecords []Record, valueRecords []Record) {
	runRecords = make([]Record, 0, len(runs))
	valueRecords = []Record{}

	for _, run := range runs {
		var exitedOn interface{}
		if run.ExitedOn != nil {
			exitedOn = *run.ExitedOn
		}

		runRecords = append(runRecords, Record{
			"id":           run.Id,
			"flow_uuid":    run.Flow.Uuid,
			"contact_uuid": run.Contact.Uuid,
			"responded":    run.Responded,
			"created_on":   run.CreatedOn,
			"modified_on":  run.ModifiedOn,
			"exited_on":    exitedOn,
			"exit_type":    stringOrNil(run.ExitType),
		})

		for _, key := range common.SortedKeys(run.Values) {
			value := run.Values[key]
			valueRecords = append(valueRecords, Record{
				"run_id":   run.Id,
				"value":    stringValue(value.Value),
				"category": stringOrNil(value.Category),
				"time":     value.Time,
				"name":     value.Name,
				"input":    stringOrNil(value.Input),
			})
		}
	}

	return runRecords, valueRecords
}

// Converts a contact field value to the column type, nil when it can't be converted
func coerceValue(value interface{}, columnType ColumnType) interface{} {
	if value == nil {
		return nil
	}

	switch columnType {
	case ColumnTypeString:
		return stringValue(value)
	case ColumnTypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			return v.UTC()
		case string:
			if v == "" {
				return nil
			}
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t.UTC()
			}
			if t, err := common.StringMsToUtcTime(v); err == nil {
				return t
			}
		}
		return nil
	case ColumnTypeInteger:
		switch v := value.(type) {
		case float64:
			if v == float64(int64(v)) {
				return int64(v)
			}
		case int64:
			return v
		case int:
			return int64(v)
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
				return int64(f)
			}
		}
		return nil
	case ColumnTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return nil
	}

	return nil
}

func stringValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(JSON_TIMESTAMP_FORMAT)
	}

	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(jsonValue)
}

func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
