package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"procesocore/pkg/domain"
)

// utf8BOM keeps Excel from mangling accented Spanish text in the CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RenderCSV writes the tracking matrix as a BOM-prefixed CSV document.
// Currency cells carry thousands separators, so fields are quoted per RFC
// 4180 rather than joined raw.
func RenderCSV(records []domain.ProcessRecord, today string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(matrixHeaders); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, row := range matrixRows(records, today) {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSVFileName names the artifact after the export day.
func CSVFileName(today string) string {
	return fmt.Sprintf("Seguimiento_DNAIS_%s.csv", today)
}
