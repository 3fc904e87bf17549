// Package sheets fetches team survey responses from the Google Sheets values
// API and normalizes them into team-health metrics.
package sheets

import "time"

// SurveyResponse is the raw source record for one spreadsheet row. It never
// leaves this package except as input to the metric calculator.
type SurveyResponse struct {
	SubmittedAt time.Time
	Team        string
	Morale      float64 // 1-5 self-reported morale score
	Workload    float64 // 1-5 self-reported workload score
	Comment     string
}

// valuesResponse mirrors the Sheets values API payload:
// GET /v4/spreadsheets/{id}/values/{range}
type valuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}
