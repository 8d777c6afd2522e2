package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/staffdeck/staffdeck/internal/models"
	"github.com/staffdeck/staffdeck/internal/version"
)

// ExportService serializes a filtered, non-paginated result set into one of
// the interchange formats. All formats carry the same logical field set, and
// absent actors render as an explicit "N/A" rather than an empty cell.
type ExportService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db, Audit: NewAuditService(db)}
}

// ExportResult is a finished byte stream with its transport metadata.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

const pdfEntriesPerPage = 8

var exportHeader = []string{
	"Timestamp", "Actor", "Role", "Action", "Entity", "Entity ID",
	"IP Address", "User Agent", "Details",
}

// Export fetches everything matching the filter and renders it.
func (s *ExportService) Export(f ListFilter, format string) (*ExportResult, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}

	var entries []models.AuditEntry
	err := s.Audit.filtered(f).
		Preload("Actor").
		Order("timestamp desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stamp := now.Format("20060102-150405")

	switch format {
	case "json":
		data, err := s.renderJSON(entries, f, now)
		if err != nil {
			return nil, err
		}
		return &ExportResult{"audit-log-" + stamp + ".json", "application/json", data}, nil
	case "csv":
		data, err := s.renderCSV(entries)
		if err != nil {
			return nil, err
		}
		return &ExportResult{"audit-log-" + stamp + ".csv", "text/csv", data}, nil
	case "excel":
		data, err := s.renderXLSX(entries)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			"audit-log-" + stamp + ".xlsx",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			data,
		}, nil
	case "pdf":
		data, err := s.renderPDF(entries, f, now)
		if err != nil {
			return nil, err
		}
		return &ExportResult{"audit-log-" + stamp + ".pdf", "application/pdf", data}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func actorName(e models.AuditEntry) string {
	if e.Actor == nil {
		return "N/A"
	}
	return e.Actor.FullName()
}

func actorRole(e models.AuditEntry) string {
	if e.Actor == nil {
		return "N/A"
	}
	return e.Actor.Role
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func detailsString(e models.AuditEntry) string {
	if len(e.Details) == 0 {
		return ""
	}
	b, err := json.Marshal(e.Details)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *ExportService) renderJSON(entries []models.AuditEntry, f ListFilter, now time.Time) ([]byte, error) {
	payload := map[string]interface{}{
		"exported_at": now,
		"total":       len(entries),
		"filters": map[string]interface{}{
			"start_date": f.StartDate,
			"end_date":   f.EndDate,
			"actor_id":   f.ActorID,
			"action":     f.Action,
			"entity":     f.Entity,
			"entity_id":  f.EntityID,
		},
		"entries": entries,
	}
	return json.MarshalIndent(payload, "", "  ")
}

func (s *ExportService) renderCSV(entries []models.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.Format(time.RFC3339),
			actorName(e),
			actorRole(e),
			string(e.Action),
			string(e.Entity),
			orNA(e.EntityID),
			orNA(e.IPAddress),
			orNA(e.UserAgent),
			detailsString(e),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) renderXLSX(entries []models.AuditEntry) ([]byte, error) {
	wb := excelize.NewFile()
	const sheet = "Audit Log"
	wb.SetSheetName("Sheet1", sheet)

	widths := []float64{22, 24, 12, 18, 16, 20, 18, 40, 60}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = wb.SetColWidth(sheet, col, col, width)
	}

	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	dateFormat := "yyyy-mm-dd hh:mm:ss"
	dateStyle, err := wb.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = wb.SetCellValue(sheet, cell, e.Timestamp)
		_ = wb.SetCellStyle(sheet, cell, cell, dateStyle)

		values := []interface{}{
			actorName(e), actorRole(e), string(e.Action), string(e.Entity),
			orNA(e.EntityID), orNA(e.IPAddress), orNA(e.UserAgent), detailsString(e),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+2, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) renderPDF(entries []models.AuditEntry, f ListFilter, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Title block
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, version.Name, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Activity Audit Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Period: "+formatPeriod(f), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+now.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total records: %d", len(entries)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for i, e := range entries {
		if i > 0 && i%pdfEntriesPerPage == 0 {
			pdf.AddPage()
		}

		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("#%d  %s", i+1, e.Timestamp.Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, fmt.Sprintf("Actor: %s    Action: %s    Entity: %s", actorName(e), e.Action, e.Entity), "", 1, "L", false, 0, "")
		if e.IPAddress != "" {
			pdf.CellFormat(0, 5, "IP: "+e.IPAddress, "", 1, "L", false, 0, "")
		}
		if d := detailsString(e); d != "" {
			pdf.SetFont("Helvetica", "", 8)
			pdf.MultiCell(0, 4, d, "", "L", false)
		}
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatPeriod(f ListFilter) string {
	const layout = "2006-01-02"
	switch {
	case f.StartDate != nil && f.EndDate != nil:
		return f.StartDate.Format(layout) + " to " + f.EndDate.Format(layout)
	case f.StartDate != nil:
		return "from " + f.StartDate.Format(layout)
	case f.EndDate != nil:
		return "until " + f.EndDate.Format(layout)
	default:
		return "all time"
	}
}
