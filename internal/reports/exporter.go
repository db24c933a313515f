package reports

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/OpenBPLS/bpls/internal/application/model"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"

	timeLayout = "2006-01-02 15:04:05"
)

// Export is a rendered report file.
type Export struct {
	Data        []byte
	Filename    string
	ContentType string
}

var applicationHeaders = []string{
	"Application ID", "Type", "Status", "Business Name", "Owner User ID",
	"Current Step", "Created At", "Submitted At", "Updated At", "Admin Notes",
}

// ApplicationsWorkbook renders the admin application list as an XLSX workbook
// with an "Applications" sheet and a "Summary" sheet of counts.
func ApplicationsWorkbook(items []model.ApplicationSummary, generatedAt time.Time) (*Export, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Applications"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range applicationHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(applicationHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	byStatus := make(map[model.ApplicationStatus]int)
	for i, item := range items {
		byStatus[item.Status]++
		values := []any{
			item.ID.String(),
			string(item.Type),
			string(item.Status),
			item.BusinessName,
			item.OwnerUserID.String(),
			item.CurrentStep,
			item.CreatedAt.UTC().Format(timeLayout),
			formatTime(item.SubmittedAt),
			item.UpdatedAt.UTC().Format(timeLayout),
			deref(item.AdminNotes),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	summary := "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(summary, "A1", "Generated At")
	_ = f.SetCellValue(summary, "B1", generatedAt.UTC().Format(timeLayout))
	_ = f.SetCellValue(summary, "A2", "Total")
	_ = f.SetCellValue(summary, "B2", len(items))
	for i, status := range model.AllStatuses {
		row := i + 3
		_ = f.SetCellValue(summary, fmt.Sprintf("A%d", row), string(status))
		_ = f.SetCellValue(summary, fmt.Sprintf("B%d", row), byStatus[status])
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return &Export{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("applications_%s.xlsx", generatedAt.UTC().Format("20060102_150405")),
		ContentType: ContentTypeXLSX,
	}, nil
}

// ApplicationSummaryPDF renders one application with all of its parts.
func ApplicationSummaryPDF(agg *model.ApplicationAggregate) (*Export, error) {
	if agg == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	app := agg.Application

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Business Permit Application "+app.ID.String(), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Business Permit Application")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(value), "1", 1, "L", false, 0, "")
	}
	section := func(title string) {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
	}

	row("Application ID", app.ID.String())
	row("Type", string(app.Type))
	row("Status", string(app.Status))
	row("Created At", app.CreatedAt.UTC().Format(timeLayout))
	row("Submitted At", formatTime(app.SubmittedAt))
	row("Admin Notes", deref(app.AdminNotes))

	section("Business Information")
	if bi := agg.BusinessInformation; bi != nil {
		row("Business Name", bi.BusinessName)
		row("Trade Name", bi.TradeName)
		row("TIN", bi.TIN)
		row("Registration No.", bi.RegistrationNumber)
		row("Ownership Type", string(bi.OwnershipType))
		row("Address", joinNonEmpty(bi.Street, bi.Barangay, bi.CityMunicipality, bi.Province, bi.ZipCode))
		row("Mobile Number", bi.MobileNumber)
		row("Email", bi.Email)
	} else {
		row("Business Information", "not provided")
	}

	section("Owner Information")
	if oi := agg.OwnerInformation; oi != nil {
		row("Name", joinNonEmpty(oi.GivenName, oi.MiddleName, oi.Surname, oi.Suffix))
		if oi.Age != nil {
			row("Age", fmt.Sprint(*oi.Age))
		}
		row("Sex", oi.Sex)
		row("Civil Status", oi.CivilStatus)
		row("Nationality", oi.Nationality)
		row("Address", joinNonEmpty(oi.Street, oi.Barangay, oi.CityMunicipality, oi.Province, oi.ZipCode))
	} else {
		row("Owner Information", "not provided")
	}

	section("Business Operations")
	if ops := agg.BusinessOperations; ops != nil {
		row("Business Area (sqm)", formatNullDecimal(ops.BusinessAreaSqm))
		row("Total Employees", formatInt(ops.TotalEmployees))
		row("Employees Residing in LGU", formatInt(ops.EmployeesResidingInLGU))
		row("Monthly Rental", formatNullDecimal(ops.MonthlyRental))
	}

	headers := []string{"Line of Business", "PSIC", "Units", "Capitalization", "Gross Sales"}
	widths := []float64{70, 25, 20, 35, 35}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range agg.BusinessLines {
		pdf.CellFormat(widths[0], 6, tr(line.LineOfBusiness), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, line.PSICCode, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprint(line.Units), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, line.Capitalization.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, line.GrossSales.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	section("Declaration")
	if decl := agg.Declaration; decl != nil {
		row("Signed By", joinNonEmpty(decl.SignerName, decl.SignerTitle))
		row("Signed At", formatTime(decl.SignedAt))
		row("Agreed", fmt.Sprint(decl.Agreed))
	} else {
		row("Declaration", "not signed")
	}

	if len(agg.Documents) > 0 {
		section("Supporting Documents")
		for _, doc := range agg.Documents {
			row(doc.Name, fmt.Sprintf("%s, %d bytes", doc.MimeType, doc.Size))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return &Export{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("application_%s.pdf", app.ID),
		ContentType: ContentTypePDF,
	}, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
