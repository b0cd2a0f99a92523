package export

import (
	"bytes"
	"fmt"
	"html/template"

	"procesocore/pkg/domain"
)

// The spreadsheet export is the legacy Excel-HTML dialect: a single table
// with inline styles that spreadsheet applications open as a worksheet.
// Completed stage cells render institutional blue, pending ones grey.
const (
	stageDoneColor    = "#00205B"
	stagePendingColor = "#9CA3AF"
	gridColor         = "#9DA3A7"
	worksheetName     = "Matriz DNAIS"
)

var spreadsheetTmpl = template.Must(template.New("spreadsheet").Parse(`<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:x="urn:schemas-microsoft-com:office:excel" xmlns="http://www.w3.org/TR/REC-html40">
<head>
<meta charset="UTF-8">
<!--[if gte mso 9]><xml><x:ExcelWorkbook><x:ExcelWorksheets><x:ExcelWorksheet><x:Name>{{.Worksheet}}</x:Name><x:WorksheetOptions><x:DisplayGridlines/></x:WorksheetOptions></x:ExcelWorksheet></x:ExcelWorksheets></x:ExcelWorkbook></xml><![endif]-->
</head>
<body>
<table border="1">
<thead><tr>{{range .Headers}}<th style="background-color: {{$.DoneColor}}; color: #FFFFFF; border: 1px solid {{$.GridColor}}; padding: 8px; text-transform: uppercase; font-size: 10pt;">{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td style="{{.Style}}">{{.Value}}</td>{{end}}</tr>{{end}}</tbody>
</table>
</body>
</html>
`))

type spreadsheetCell struct {
	Value string
	Style template.CSS
}

type spreadsheetData struct {
	Worksheet string
	Headers   []string
	DoneColor string
	GridColor string
	Rows      [][]spreadsheetCell
}

func cellStyle(index int, value string) template.CSS {
	style := fmt.Sprintf("border: 1px solid %s; padding: 8px; font-size: 9pt; text-align: center;", gridColor)
	if highlightColumns[index] {
		if value == pendingCell {
			style += fmt.Sprintf("background-color: %s; color: #F3F4F6;", stagePendingColor)
		} else {
			style += fmt.Sprintf("background-color: %s; color: #FFFFFF; font-weight: bold;", stageDoneColor)
		}
	}
	if index == 0 {
		style += "text-align: left; font-weight: bold;"
	}
	return template.CSS(style)
}

// RenderSpreadsheet writes the tracking matrix as an Excel-HTML worksheet.
func RenderSpreadsheet(records []domain.ProcessRecord, today string) ([]byte, error) {
	rows := matrixRows(records, today)
	data := spreadsheetData{
		Worksheet: worksheetName,
		Headers:   matrixHeaders,
		DoneColor: stageDoneColor,
		GridColor: gridColor,
		Rows:      make([][]spreadsheetCell, 0, len(rows)),
	}
	for _, row := range rows {
		cells := make([]spreadsheetCell, 0, len(row))
		for i, value := range row {
			cells = append(cells, spreadsheetCell{Value: value, Style: cellStyle(i, value)})
		}
		data.Rows = append(data.Rows, cells)
	}
	var buf bytes.Buffer
	if err := spreadsheetTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}

// SpreadsheetFileName names the artifact after the export day.
func SpreadsheetFileName(today string) string {
	return fmt.Sprintf("Seguimiento_DNAIS_%s.xls", today)
}
