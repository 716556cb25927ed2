package reports

import (
	"fmt"
)

// NewReportGenerator creates a report generator based on the report type.
func NewReportGenerator(reportType ReportType, s ReportStore) (Generator, error) {
	switch reportType {
	case ReportTypeComponents:
		return NewComponentsReport(s), nil
	case ReportTypeFlows:
		return NewFlowsReport(s), nil
	case ReportTypePipes:
		return NewPipesReport(s), nil
	case ReportTypeRuns:
		return NewRunsReport(s), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}
