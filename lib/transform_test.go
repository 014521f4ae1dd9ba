package rapidpro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string {
	return &s
}

func TestGroupRecords(t *testing.T) {
	records := GroupRecords([]Group{{Uuid: "g1", Name: "Farmers", Count: 10}})

	assert.Equal(t, []Record{{"uuid": "g1", "name": "Farmers"}}, records)
}

func TestContactRecords(t *testing.T) {
	modifiedOn := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	contactsTable := ContactsTable([]*Column{
		{Name: "district", Type: ColumnTypeString},
		{Name: "age", Type: ColumnTypeString},
		{Name: "registered_on", Type: ColumnTypeTimestamp},
		{Name: "children", Type: ColumnTypeInteger},
		{Name: "consented", Type: ColumnTypeBoolean},
	})

	t.Run("Builds contact and group membership records", func(t *testing.T) {
		contacts := []Contact{{
			Uuid:       "c1",
			Urns:       []string{"tel:+250788123123"},
			Groups:     []ObjectRef{{Uuid: "g1"}, {Uuid: "g2"}},
			Fields:     map[string]interface{}{"district": "Kigali", "age": float64(31), "unmapped": "x"},
			ModifiedOn: modifiedOn,
		}}

		contactRecords, groupContactRecords := ContactRecords(contacts, contactsTable)

		require.Len(t, contactRecords, 1)
		assert.Equal(t, Record{
			"uuid":        "c1",
			"modified_on": modifiedOn,
			"urn":         "tel:+250788123123",
			"district":    "Kigali",
			"age":         "31",
		}, contactRecords[0])
		assert.Equal(t, []Record{
			{"contact_uuid": "c1", "group_uuid": "g1"},
			{"contact_uuid": "c1", "group_uuid": "g2"},
		}, groupContactRecords)
	})

	t.Run("Coerces field values to the column types", func(t *testing.T) {
		contacts := []Contact{{
			Uuid: "c2",
			Fields: map[string]interface{}{
				"district":      nil,
				"registered_on": "2024-04-01T09:30:00.000000Z",
				"children":      "2",
				"consented":     "true",
			},
			ModifiedOn: modifiedOn,
		}}

		contactRecords, groupContactRecords := ContactRecords(contacts, contactsTable)

		record := contactRecords[0]
		assert.Nil(t, record["district"])
		assert.Equal(t, time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC), record["registered_on"])
		assert.Equal(t, int64(2), record["children"])
		assert.Equal(t, true, record["consented"])
		assert.Nil(t, record["urn"])
		assert.Empty(t, groupContactRecords)
	})

	t.Run("Stores empty timestamps as null", func(t *testing.T) {
		contacts := []Contact{{Uuid: "c3", Fields: map[string]interface{}{"registered_on": ""}, ModifiedOn: modifiedOn}}

		contactRecords, _ := ContactRecords(contacts, contactsTable)

		value, ok := contactRecords[0]["registered_on"]
		assert.True(t, ok)
		assert.Nil(t, value)
	})

	t.Run("Keeps uuid and modified_on from the contact", func(t *testing.T) {
		contacts := []Contact{{
			Uuid:       "c4",
			Fields:     map[string]interface{}{"uuid": "other", "modified_on": "", "urn": "tel:+1555"},
			Urns:       []string{"tel:+250788000000"},
			ModifiedOn: modifiedOn,
		}}

		contactRecords, _ := ContactRecords(contacts, contactsTable)

		assert.Equal(t, "c4", contactRecords[0]["uuid"])
		assert.Equal(t, modifiedOn, contactRecords[0]["modified_on"])
		assert.Equal(t, "tel:+1555", contactRecords[0]["urn"])
	})
}

func TestFlowRecords(t *testing.T) {
	t.Run("Flattens labels to their names", func(t *testing.T) {
		records := FlowRecords([]Flow{
			{Uuid: "f1", Name: "Registration", Labels: []ObjectRef{{Uuid: "l1", Name: "Onboarding"}, {Uuid: "l2", Name: "SMS"}}},
			{Uuid: "f2", Name: "Survey"},
		})

		assert.Equal(t, []Record{
			{"uuid": "f1", "name": "Registration", "labels": []string{"Onboarding", "SMS"}},
			{"uuid": "f2", "name": "Survey", "labels": []string{}},
		}, records)
	})
}

func TestRunRecords(t *testing.T) {
	createdOn := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exitedOn := createdOn.Add(time.Minute)

	t.Run("Builds run and run value records", func(t *testing.T) {
		runs := []Run{{
			Id:         42,
			Flow:       ObjectRef{Uuid: "f1"},
			Contact:    RunContact{Uuid: "c1"},
			Responded:  true,
			CreatedOn:  createdOn,
			ModifiedOn: exitedOn,
			ExitedOn:   &exitedOn,
			ExitType:   stringPtr("completed"),
			Values: map[string]RunValue{
				"name": {Name: "Name", Value: "Ann", Category: stringPtr("Has Text"), Time: createdOn, Input: stringPtr("Ann")},
				"age":  {Name: "Age", Value: float64(31), Category: stringPtr("Numeric"), Time: createdOn},
			},
		}}

		runRecords, valueRecords := RunRecords(runs)

		assert.Equal(t, []Record{{
			"id":           int64(42),
			"flow_uuid":    "f1",
			"contact_uuid": "c1",
			"responded":    true,
			"created_on":   createdOn,
			"modified_on":  exitedOn,
			"exited_on":    exitedOn,
			"exit_type":    "completed",
		}}, runRecords)
		assert.Equal(t, []Record{
			{"run_id": int64(42), "value": "31", "category": "Numeric", "time": createdOn, "name": "Age", "input": nil},
			{"run_id": int64(42), "value": "Ann", "category": "Has Text", "time": createdOn, "name": "Name", "input": "Ann"},
		}, valueRecords)
	})

	t.Run("Stores missing exit values as null", func(t *testing.T) {
		runRecords, valueRecords := RunRecords([]Run{{Id: 1, CreatedOn: createdOn, ModifiedOn: createdOn}})

		assert.Nil(t, runRecords[0]["exited_on"])
		assert.Nil(t, runRecords[0]["exit_type"])
		assert.Empty(t, valueRecords)
	})
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, "true", coerceValue(true, ColumnTypeString))
	assert.Equal(t, "2.5", coerceValue(2.5, ColumnTypeString))
	assert.Equal(t, `{"a":1}`, coerceValue(map[string]interface{}{"a": 1}, ColumnTypeString))
	assert.Nil(t, coerceValue("not a date", ColumnTypeTimestamp))
	assert.Equal(t, int64(3), coerceValue(float64(3), ColumnTypeInteger))
	assert.Nil(t, coerceValue(2.5, ColumnTypeInteger))
	assert.Nil(t, coerceValue("maybe", ColumnTypeBoolean))
	assert.Nil(t, coerceValue(nil, ColumnTypeString))
}
