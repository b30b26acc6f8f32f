package models

import "time"

// RowError describes why a single import row was rejected. Row is 1-based and
// counts the header line, matching what a spreadsheet shows.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises one CSV/XLSX import run.
type ImportResult struct {
	TotalRows int        `json:"total_rows"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Skipped   int        `json:"skipped"`
	Errors    []RowError `json:"errors"`
}

// AddError records a failed row.
func (r *ImportResult) AddError(row int, message string) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: message})
}

// ExportArchive is an export file kept in blob storage.
type ExportArchive struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
