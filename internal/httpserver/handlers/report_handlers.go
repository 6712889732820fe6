package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"buildtrack/internal/models"
	"buildtrack/internal/service"
)

const (
	exportLimitDefault = 1000
	exportLimitMax     = 5000
)

func Stats(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats()
		if err != nil {
			lg.Errorw("stats query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

var exportHeader = []string{
	"id", "title", "status", "priority", "projectId", "objectId",
	"stageId", "assigneeId", "creatorId", "dueDate", "closedAt", "createdAt",
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func exportRecord(d models.Defect) []string {
	stageID := ""
	if d.StageID != nil {
		stageID = fmt.Sprint(*d.StageID)
	}
	assigneeID := ""
	if d.AssigneeID != nil {
		assigneeID = *d.AssigneeID
	}
	created := d.CreatedAt
	return []string{
		fmt.Sprint(d.ID), d.Title, d.Status, d.Priority,
		fmt.Sprint(d.ProjectID), fmt.Sprint(d.ObjectID),
		stageID, assigneeID, d.CreatorID,
		fmtTime(d.DueDate), fmtTime(d.ClosedAt), fmtTime(&created),
	}
}

// ExportDefects streams the filtered defect listing as CSV or XLSX.
func ExportDefects(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opt := listOptionsFromQuery(r, exportLimitDefault, exportLimitMax)
		rows, err := svc.ExportRows(opt)
		if err != nil {
			lg.Errorw("export query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		stamp := svc.Now().UTC().Format(time.RFC3339)
		format := strings.ToLower(r.URL.Query().Get("format"))
		if format == "xlsx" {
			writeXLSX(w, lg, rows, stamp)
			return
		}
		writeCSV(w, lg, rows, stamp)
	}
}

func writeCSV(w http.ResponseWriter, lg *zap.SugaredLogger, rows []models.Defect, stamp string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "defects_"+stamp+".csv"))
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, d := range rows {
		_ = cw.Write(exportRecord(d))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		lg.Errorw("csv export interrupted", "error", err)
	}
}

func writeXLSX(w http.ResponseWriter, lg *zap.SugaredLogger, rows []models.Defect, stamp string) {
	f := excelize.NewFile()
	const sheet = "defects"
	f.SetSheetName("Sheet1", sheet)
	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	_ = f.SetSheetRow(sheet, "A1", &header)
	for i, d := range rows {
		rec := exportRecord(d)
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheet, cell, &row)
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "defects_"+stamp+".xlsx"))
	if err := f.Write(w); err != nil {
		lg.Errorw("xlsx export interrupted", "error", err)
	}
}
