package common

import (
	"bytes"
	"io"
	"testing"
)

func TestStreamParquet(t *testing.T) {
	schemaJson := BuildParquetSchemaJson(initTestConfig(), []ParquetSchemaField{
		{Tag: "name=uuid, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
		{Tag: "name=children, type=INT64, repetitiontype=OPTIONAL"},
	})

	t.Run("Builds a JSON schema with a root field", func(t *testing.T) {
		expected := `{"Tag":"name=root, repetitiontype=REQUIRED","Fields":[` +
			`{"Tag":"name=uuid, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},` +
			`{"Tag":"name=children, type=INT64, repetitiontype=OPTIONAL"}]}`
		if schemaJson != expected {
			t.Errorf("Expected %s, got %s", expected, schemaJson)
		}
	})

	t.Run("Streams a complete Parquet file", func(t *testing.T) {
		values := []string{"a", "b", "c"}

		cappedBuffer := StreamParquet(initTestConfig(), schemaJson, values, func(value string) map[string]interface{} {
			return map[string]interface{}{"uuid": value, "children": nil}
		})
		defer cappedBuffer.Close()
		output, err := io.ReadAll(cappedBuffer)

		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if !bytes.HasPrefix(output, []byte("PAR1")) || !bytes.HasSuffix(output, []byte("PAR1")) {
			t.Errorf("Expected a Parquet file, got %d bytes", len(output))
		}
	})

	t.Run("Surfaces schema errors to the reader", func(t *testing.T) {
		cappedBuffer := StreamParquet(initTestConfig(), "{", []string{"a"}, func(value string) map[string]interface{} {
			return map[string]interface{}{"uuid": value}
		})
		defer cappedBuffer.Close()
		_, err := io.ReadAll(cappedBuffer)

		if err == nil {
			t.Error("Expected a schema error")
		}
	})
}
