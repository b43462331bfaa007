// Package excel loads long-format observation tables from xlsx and csv
// files. Table ingestion is an external collaborator of the core pipeline;
// it lives here so the analysis packages never touch file formats.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"timecourse/domain/core"
	"timecourse/domain/timeseries"
	apperrors "timecourse/internal/errors"
)

// Columns names the table columns holding each observation field.
type Columns struct {
	Value   string
	Group   string
	Time    string
	Subject string
}

// DefaultColumns matches the conventional long-format header.
func DefaultColumns() Columns {
	return Columns{Value: "value", Group: "group", Time: "time", Subject: "subject"}
}

// ObservationReader reads observation tables from xlsx or csv files.
type ObservationReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	columns  Columns
}

// NewObservationReader creates a reader for the given path; the format is
// chosen by file extension.
func NewObservationReader(filePath string) *ObservationReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(filePath)) == ".csv" {
		fileType = "csv"
	}
	return &ObservationReader{filePath: filePath, fileType: fileType, columns: DefaultColumns()}
}

// SetColumns overrides the expected header names.
func (r *ObservationReader) SetColumns(c Columns) {
	r.columns = c
}

// ReadDataset reads the table and builds a validated dataset.
func (r *ObservationReader) ReadDataset() (*timeseries.Dataset, error) {
	obs, err := r.ReadObservations()
	if err != nil {
		return nil, err
	}
	return timeseries.NewDataset(obs)
}

// ReadObservations reads the raw observation rows.
func (r *ObservationReader) ReadObservations() ([]timeseries.Observation, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, apperrors.NotFound(fmt.Sprintf("input file %s", r.filePath))
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported file type %q", r.fileType))
	}
	if err != nil {
		return nil, err
	}
	return r.parseRows(rows)
}

func (r *ObservationReader) readCSVRows() ([][]string, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening csv file %s", r.filePath)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.Wrapf(err, "reading csv file %s", r.filePath)
	}
	return rows, nil
}

func (r *ObservationReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening excel file %s", r.filePath)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.InvalidInput("workbook contains no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Wrapf(err, "reading sheet %s", sheets[0])
	}
	return rows, nil
}

func (r *ObservationReader) parseRows(rows [][]string) ([]timeseries.Observation, error) {
	if len(rows) < 2 {
		return nil, apperrors.InvalidInput("table needs a header row and at least one data row")
	}

	idx, err := r.headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	obs := make([]timeseries.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		o, err := r.parseRow(row, idx)
		if err != nil {
			return nil, apperrors.Wrapf(err, "row %d", i+2)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

type columnIndex struct {
	value, group, time, subject int
}

func (r *ObservationReader) headerIndex(header []string) (columnIndex, error) {
	idx := columnIndex{value: -1, group: -1, time: -1, subject: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(r.columns.Value):
			idx.value = i
		case strings.ToLower(r.columns.Group):
			idx.group = i
		case strings.ToLower(r.columns.Time):
			idx.time = i
		case strings.ToLower(r.columns.Subject):
			idx.subject = i
		}
	}
	if idx.value < 0 || idx.group < 0 || idx.time < 0 || idx.subject < 0 {
		return idx, apperrors.InvalidInput(fmt.Sprintf(
			"header must contain %q, %q, %q and %q columns",
			r.columns.Value, r.columns.Group, r.columns.Time, r.columns.Subject))
	}
	return idx, nil
}

func (r *ObservationReader) parseRow(row []string, idx columnIndex) (timeseries.Observation, error) {
	var o timeseries.Observation

	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	value, err := strconv.ParseFloat(cell(idx.value), 64)
	if err != nil {
		return o, fmt.Errorf("invalid value %q", cell(idx.value))
	}
	tt, err := strconv.ParseFloat(cell(idx.time), 64)
	if err != nil {
		return o, fmt.Errorf("invalid time %q", cell(idx.time))
	}
	subject, err := core.ParseSubjectID(cell(idx.subject))
	if err != nil {
		return o, err
	}
	group := cell(idx.group)
	if group == "" {
		return o, fmt.Errorf("empty group label")
	}

	return timeseries.Observation{Value: value, Group: group, Time: tt, Subject: subject}, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
