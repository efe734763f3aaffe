package core

// report.go exports a run as a workbook or a printable PDF.

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const reportTimeLayout = "2006-01-02 15:04:05"

// BuildRunXLSX renders a run as a workbook with a summary sheet, one row
// per validated item, and one row per created transfer.
func BuildRunXLSX(run *Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "resumen"
	itemsSheet := "items"
	transfersSheet := "transferencias"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(transfersSheet); err != nil {
		return nil, err
	}

	valid, invalid, transfers := run.Counts()
	_ = f.SetCellValue(summarySheet, "A1", "Ejecución")
	_ = f.SetCellValue(summarySheet, "B1", run.ID.String())
	_ = f.SetCellValue(summarySheet, "A2", "Inicio")
	_ = f.SetCellValue(summarySheet, "B2", run.StartedAt.Format(reportTimeLayout))
	_ = f.SetCellValue(summarySheet, "A3", "Fin")
	_ = f.SetCellValue(summarySheet, "B3", run.FinishedAt.Format(reportTimeLayout))
	_ = f.SetCellValue(summarySheet, "A4", "Solo validación")
	_ = f.SetCellValue(summarySheet, "B4", run.DryRun)
	_ = f.SetCellValue(summarySheet, "A5", "Archivos válidos")
	_ = f.SetCellValue(summarySheet, "B5", valid)
	_ = f.SetCellValue(summarySheet, "A6", "Archivos con errores")
	_ = f.SetCellValue(summarySheet, "B6", invalid)
	_ = f.SetCellValue(summarySheet, "A7", "Transferencias creadas")
	_ = f.SetCellValue(summarySheet, "B7", transfers)
	_ = f.SetCellValue(summarySheet, "A8", "Archivos ignorados")
	_ = f.SetCellValue(summarySheet, "B8", strings.Join(run.Ignored, ", "))

	_ = f.SetCellValue(summarySheet, "A10", "Archivo")
	_ = f.SetCellValue(summarySheet, "B10", "Formato")
	_ = f.SetCellValue(summarySheet, "C10", "Registros")
	_ = f.SetCellValue(summarySheet, "D10", "Válido")
	_ = f.SetCellValue(summarySheet, "E10", "Errores")
	for i, file := range run.Files {
		row := i + 11
		vr := file.Validation
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), file.Name)
		if vr == nil {
			continue
		}
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), string(vr.Format))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), vr.TotalItems)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), vr.Valid)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), fileErrorText(vr.Errors))
	}

	itemHeaders := []string{"Archivo", "Ubicación", "Ubicación original", "Línea", "Código", "Referencia", "Cantidad", "Producto", "Estado", "Errores"}
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}
	row := 2
	for _, file := range run.Files {
		if file.Validation == nil {
			continue
		}
		for _, b := range file.Validation.Batches {
			if !b.Valid && b.Error != "" {
				values := []any{file.Name, b.Location, b.OriginalName, "", "", "", "", "", "ERROR", b.Error}
				setRow(f, itemsSheet, row, values)
				row++
				continue
			}
			for _, item := range sortedItems(b) {
				status := "OK"
				product := ""
				if item.Product != nil {
					product = item.Product.Name
				}
				if !item.Valid {
					status = "ERROR"
				}
				values := []any{
					file.Name, b.Location, b.OriginalName, item.Row, item.Code, item.Reference,
					item.RawQty, product, status, strings.Join(item.Errors, "; "),
				}
				setRow(f, itemsSheet, row, values)
				row++
			}
		}
	}

	transferHeaders := []string{"Archivo", "Transferencia", "Ubicación", "Ubicación original", "Líneas creadas", "Líneas fallidas"}
	for i, h := range transferHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(transfersSheet, cell, h)
	}
	row = 2
	for _, file := range run.Files {
		if file.Transfer == nil {
			continue
		}
		for _, t := range file.Transfer.Transfers {
			setRow(f, transfersSheet, row, []any{file.Name, t.PickingID, t.Location, t.OriginalName, t.ItemsProcessed, t.ItemsFailed})
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

// sortedItems returns a batch's items in file order.
func sortedItems(b *LocationBatch) []*ItemValidation {
	items := make([]*ItemValidation, 0, len(b.ValidItems)+len(b.InvalidItems))
	vi, ii := 0, 0
	for vi < len(b.ValidItems) || ii < len(b.InvalidItems) {
		switch {
		case ii >= len(b.InvalidItems):
			items = append(items, b.ValidItems[vi])
			vi++
		case vi >= len(b.ValidItems):
			items = append(items, b.InvalidItems[ii])
			ii++
		case b.ValidItems[vi].Row < b.InvalidItems[ii].Row:
			items = append(items, b.ValidItems[vi])
			vi++
		default:
			items = append(items, b.InvalidItems[ii])
			ii++
		}
	}
	return items
}

func fileErrorText(errs []FileError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Details != "" {
			parts = append(parts, e.Message+" ("+e.Details+")")
		} else {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// BuildRunPDF renders a one-page-per-file summary of a run.
func BuildRunPDF(run *Run) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, tr("Resumen de transferencias"))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Ejecución: %s", run.ID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Inicio: %s", run.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if run.DryRun {
		pdf.Cell(0, 6, tr("Solo validación: no se crearon transferencias"))
		pdf.Ln(5)
	}
	if len(run.Ignored) > 0 {
		pdf.Cell(0, 6, tr("Archivos ignorados: "+strings.Join(run.Ignored, ", ")))
		pdf.Ln(5)
	}

	for _, file := range run.Files {
		vr := file.Validation
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 7, tr(file.Name))
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 10)
		if vr == nil {
			continue
		}
		if vr.Format != "" {
			pdf.Cell(0, 6, tr(fmt.Sprintf("Formato: %s - Registros: %d", vr.Format, vr.TotalItems)))
			pdf.Ln(5)
		}
		for _, e := range vr.Errors {
			pdf.MultiCell(0, 5, tr(e.Message+" "+e.Details), "", "L", false)
		}

		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, tr("Ubicación"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, "Total", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, tr("Válidos"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Errores", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, b := range vr.Batches {
			pdf.CellFormat(70, 6, tr(b.OriginalName), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", b.TotalItems), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", len(b.ValidItems)), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", len(b.InvalidItems)), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}

		if file.Transfer != nil {
			pdf.Ln(2)
			for _, t := range file.Transfer.Transfers {
				pdf.Cell(0, 6, tr(fmt.Sprintf("Transferencia %d creada (%s): %d productos, %d fallidos",
					t.PickingID, t.OriginalName, t.ItemsProcessed, t.ItemsFailed)))
				pdf.Ln(5)
			}
			if !file.Transfer.Success {
				pdf.Cell(0, 6, tr("Error al crear transferencias"))
				pdf.Ln(5)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
