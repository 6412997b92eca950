package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"csv_stream_backend/pkg/errs"
)

func TestValidateResultFileName(t *testing.T) {
	valid := []string{
		"3f1c2a9e-1b2c-4d5e-8f90-123456789abc.csv",
		"result_1.CSV",
	}
	for _, name := range valid {
		assert.NoError(t, ValidateResultFileName(name), name)
	}

	invalid := map[string]string{
		"":               "Filename cannot be empty.",
		"   ":            "Filename cannot be empty.",
		"../etc/passwd":  "Invalid filename.",
		"a/b.csv":        "Invalid filename.",
		`a\b.csv`:        "Invalid filename.",
		"~root.csv":      "Invalid filename.",
		"report.txt":     "Only CSV files are available for download.",
		"my report.csv":  "Invalid filename format.",
		"résultat.csv":   "Invalid filename format.",
		"semi;colon.csv": "Invalid filename format.",
	}
	for name, msg := range invalid {
		err := ValidateResultFileName(name)
		if assert.Error(t, err, name) {
			assert.True(t, errs.IsCode(err, errs.CodeInvalidInput))
			assert.Contains(t, err.Error(), msg, name)
		}
	}
}

func TestIsCSVUpload(t *testing.T) {
	assert.True(t, IsCSVUpload("sales.csv"))
	assert.True(t, IsCSVUpload("SALES.CSV"))
	assert.False(t, IsCSVUpload("sales.xlsx"))
	assert.False(t, IsCSVUpload("csv"))
	assert.False(t, IsCSVUpload(""))
}

func TestMakeFilenameSafe(t *testing.T) {
	tests := map[string]string{
		"sales.csv":            "sales",
		"../../q3 sales!.csv":  "q3sales",
		`C:\data\export-1.csv`: "export-1",
		"archive.tar.csv":      "archivetar",
		"%%%.csv":              "results",
		".csv":                 "csv",
		"ventes_été.csv":       "ventes_été",
	}
	for in, want := range tests {
		assert.Equal(t, want, MakeFilenameSafe(in), in)
	}
}

func TestDownloadFileName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "Processed_sales_1700000000.csv", DownloadFileName("sales.csv", now))
	assert.Equal(t, "Processed_results.csv", DownloadFileName("", now))
}
