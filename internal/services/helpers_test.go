package services

import (
	"github.com/ternarybob/arbor"

	"snow-extractor/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func rawRecord(fields map[string]string) models.RawRecord {
	record := models.NewRawRecord()
	for k, v := range fields {
		record.Set(k, v)
	}
	return record
}
