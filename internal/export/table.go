// Package export renders procurement tracking tables as downloadable
// artifacts and runs export jobs asynchronously against a blob store.
package export

import (
	"strconv"

	"procesocore/pkg/domain"
)

// Headers for the tracking matrix, in column order. Day columns interleave
// with certificate date columns so the sheet reads stage, elapsed, stage.
var matrixHeaders = []string{
	"Nombre del Proceso",
	"Tipo de Proceso",
	"Presupuesto Referencial",
	"Monto Final Adjudicado",
	"Informe Estudio Mercado",
	"Inicio de Proceso",
	"Dias Inicio Proceso",
	"Cert. Planificacion",
	"Dias Planificacion",
	"Cert. Compras Publicas",
	"Dias Compras",
	"Cert. Financiero",
	"Dias Financiero",
	"Cert. Delegado",
	"Dias Delegado",
	"Cert. Juridico",
	"Dias Juridico",
	"Cert. Adjudicada",
	"Dias Adjudicada",
	"Total Dias",
}

const pendingCell = "Pendiente"

// highlightColumns are the indexes rendered with stage colors in the
// spreadsheet export. Index 4 is the opening report date, the rest are the
// elapsed-day columns.
var highlightColumns = map[int]bool{4: true, 6: true, 8: true, 10: true, 12: true, 14: true, 16: true, 18: true}

func dateCell(date string) string {
	if date == "" {
		return pendingCell
	}
	return date
}

func elapsedCell(e domain.Elapsed) string {
	if !e.Known {
		return domain.DatePlaceholder
	}
	return strconv.Itoa(e.Days)
}

// matrixRow flattens one record into the 20 matrix columns. Elapsed cells for
// pending stages count live against today.
func matrixRow(p domain.ProcessRecord, today string) []string {
	statuses := domain.EvaluateStages(p, today)

	processType := string(p.ProcessType)
	if processType == "" {
		processType = domain.DatePlaceholder
	}
	awarded := domain.DatePlaceholder
	if p.FinalAwardedAmount != nil {
		awarded = domain.FormatCurrency(*p.FinalAwardedAmount)
	}

	row := []string{
		p.Name,
		processType,
		domain.FormatCurrency(p.Budget),
		awarded,
		dateCell(p.MarketStudyReportDate),
	}
	// statuses[0] is the market study, whose date is already emitted; the
	// remaining seven stages each contribute a date and a day count.
	for _, status := range statuses[1:] {
		row = append(row, dateCell(status.Date), elapsedCell(status.Elapsed))
	}
	return append(row, elapsedCell(domain.TotalElapsed(p, today)))
}

func matrixRows(records []domain.ProcessRecord, today string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, p := range records {
		rows = append(rows, matrixRow(p, today))
	}
	return rows
}
