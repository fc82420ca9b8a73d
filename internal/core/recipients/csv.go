package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vietddude/payroll/internal/core/domain"
)

var csvHeader = []string{"address", "amount"}

// ReadCSV parses an address,amount file. The header row is optional and extra
// columns are ignored. Blank rows are skipped; any other bad row fails the
// whole read with its line number.
func ReadCSV(r io.Reader) (Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var sheet Sheet
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Sheet{}, domain.NewError(domain.KindValidation, "read csv", "", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		header := first && isHeader(rec)
		first = false
		if header {
			continue
		}
		if len(rec) < 2 {
			return Sheet{}, domain.NewError(domain.KindValidation, "read csv",
				fmt.Sprintf("line %d: expected address,amount", line), nil)
		}

		next, err := sheet.Add(domain.Recipient{Address: rec[0], AmountUSD: rec[1]})
		if err != nil {
			return Sheet{}, fmt.Errorf("line %d: %w", line, err)
		}
		sheet = next
	}
	return sheet, nil
}

// WriteCSV writes recipients with a header row.
func WriteCSV(w io.Writer, rs []domain.Recipient) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rs {
		if err := cw.Write([]string{r.Address, r.AmountUSD}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isHeader(rec []string) bool {
	return strings.EqualFold(strings.TrimSpace(rec[0]), csvHeader[0])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
