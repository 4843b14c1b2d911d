package models

import (
	"probe-go/internal/probe"
	"probe-go/internal/report"
)

// UploadResponse is returned after a historical dataset is loaded
type UploadResponse struct {
	Message      string   `json:"message"`
	Source       string   `json:"source"`
	Name         string   `json:"name"`
	Rows         int      `json:"rows"`
	SizeColumn   string   `json:"size_column"`
	EffortColumn string   `json:"effort_column"`
	ProjectIDs   []string `json:"project_ids,omitempty"`
}

// StatusResponse is returned by /status endpoint
type StatusResponse struct {
	Loaded       bool   `json:"loaded"`
	Source       string `json:"source,omitempty"`
	Name         string `json:"name,omitempty"`
	Rows         int    `json:"rows"`
	SizeColumn   string `json:"size_column,omitempty"`
	EffortColumn string `json:"effort_column,omitempty"`
	LoadedAt     string `json:"loaded_at,omitempty"`
}

// RegressionResponse is returned by /regression endpoint
type RegressionResponse struct {
	Model      probe.Model     `json:"model"`
	RSquared   float64         `json:"r_squared"`
	Equation   string          `json:"equation"`
	SampleSize int             `json:"sample_size"`
	Plot       report.PlotData `json:"plot"`
}

// EstimateRequest for /estimate endpoint. Confidence defaults to the
// server's configured level when omitted.
type EstimateRequest struct {
	Size          *float64 `json:"size"`
	Confidence    *float64 `json:"confidence,omitempty"`
	HoursPerMonth float64  `json:"hours_per_month,omitempty"`
}

// EstimateResponse for /estimate endpoint
type EstimateResponse struct {
	Summary   report.Summary `json:"summary"`
	Narrative []string       `json:"narrative"`
}

// DBLoadRequest for /db/load endpoint
type DBLoadRequest struct {
	Connection   *DBConnection `json:"connection,omitempty"`
	Table        string        `json:"table"`
	SizeColumn   string        `json:"size_column"`
	EffortColumn string        `json:"effort_column"`
	IDColumn     string        `json:"id_column,omitempty"`
}

// DBConnection overrides the configured database for one load
type DBConnection struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
