package services

import (
	"github.com/ternarybob/arbor"

	"snow-extractor/internal/interfaces"
)

type logReporter struct {
	logger arbor.ILogger
}

// NewLogReporter reports status strings to the log
func NewLogReporter(logger arbor.ILogger) interfaces.StatusReporter {
	return &logReporter{logger: logger}
}

func (r *logReporter) Report(status string) {
	r.logger.Info().Str("status", status).Msg("Extractor status")
}

type multiReporter []interfaces.StatusReporter

// NewMultiReporter fans each status out to every non-nil reporter
func NewMultiReporter(reporters ...interfaces.StatusReporter) interfaces.StatusReporter {
	var m multiReporter
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multiReporter) Report(status string) {
	for _, r := range m {
		r.Report(status)
	}
}
