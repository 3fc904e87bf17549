package sheets

import (
	"fmt"
	"math"
	"time"

	"github.com/tempohq/teamtempo/metrics"
)

// CalculateMetrics derives the fixed survey metric set from raw responses.
// Pure and deterministic. Empty input yields the same fixed-length set with
// zero values, never an error and never an empty slice.
func CalculateMetrics(responses []SurveyResponse, now time.Time) []metrics.Metric {
	basedOn := fmt.Sprintf("Based on %d responses", len(responses))

	return []metrics.Metric{
		{
			ID:             "sheets-survey-response-count",
			Category:       "Survey",
			Name:           "Response Count",
			Value:          float64(len(responses)),
			Unit:           "responses",
			AdditionalInfo: basedOn,
			Source:         metrics.SourceSheets,
			Timestamp:      now,
		},
		{
			ID:             "sheets-survey-average-morale",
			Category:       "Survey",
			Name:           "Average Morale",
			Value:          average(responses, func(r SurveyResponse) float64 { return r.Morale }),
			Unit:           "score (1-5)",
			AdditionalInfo: basedOn,
			Source:         metrics.SourceSheets,
			Timestamp:      now,
		},
		{
			ID:             "sheets-survey-average-workload",
			Category:       "Survey",
			Name:           "Average Workload",
			Value:          average(responses, func(r SurveyResponse) float64 { return r.Workload }),
			Unit:           "score (1-5)",
			AdditionalInfo: basedOn,
			Source:         metrics.SourceSheets,
			Timestamp:      now,
		},
	}
}

// average rounds to two decimal places; survey dashboards show 4.25, not
// 4.2500000000000004.
func average(responses []SurveyResponse, score func(SurveyResponse) float64) float64 {
	if len(responses) == 0 {
		return 0
	}
	var total float64
	for _, r := range responses {
		total += score(r)
	}
	return math.Round(total/float64(len(responses))*100) / 100
}
