// Package sheets reads pool score sheets from XLSX workbooks and writes
// ranking and standings workbooks.
package sheets

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/errs"
)

// DefaultVictoryScore is the value of a bare "V" cell.
const DefaultVictoryScore = 5

// ImportOption tunes ImportPool.
type ImportOption func(*importConfig)

type importConfig struct {
	sheet        string
	poolID       string
	victoryScore int
}

// WithSheet reads the named sheet instead of the first one.
func WithSheet(name string) ImportOption {
	return func(c *importConfig) { c.sheet = name }
}

// WithPoolID overrides the derived pool id.
func WithPoolID(id string) ImportOption {
	return func(c *importConfig) { c.poolID = id }
}

// WithVictoryScore sets the touches credited for a bare "V" cell.
func WithVictoryScore(n int) ImportOption {
	return func(c *importConfig) {
		if n > 0 {
			c.victoryScore = n
		}
	}
}

// ImportPool reads one pool sheet. The expected layout is an optional
// "Pool <n>" title row, then a header row starting with "ID", then one row
// per entrant: id, name, then one score cell per opponent in header order.
// Cells may hold a number, "V<n>"/"D<n>", or a bare "V". Blank cells and the
// diagonal mean not fenced.
func ImportPool(r io.Reader, opts ...ImportOption) (rating.PoolSheet, error) {
	const op = "sheets.ImportPool"
	cfg := importConfig{victoryScore: DefaultVictoryScore}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return rating.PoolSheet{}, errs.WrapKind(op, errs.ErrValidation, fmt.Errorf("open workbook: %w", err))
	}
	defer func() { _ = f.Close() }()

	name := cfg.sheet
	if name == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return rating.PoolSheet{}, errs.WrapKind(op, errs.ErrValidation, ErrNoSheets)
		}
		name = list[0]
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return rating.PoolSheet{}, errs.WrapKind(op, errs.ErrValidation, fmt.Errorf("read sheet %q: %w", name, err))
	}
	return parsePool(op, rows, cfg)
}

func parsePool(op string, rows [][]string, cfg importConfig) (rating.PoolSheet, error) {
	sheet := rating.PoolSheet{Number: 1}
	header := -1
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		first := strings.TrimSpace(row[0])
		if n, ok := poolNumber(first, row); ok {
			sheet.Number = n
			continue
		}
		if strings.EqualFold(first, "ID") {
			header = i
			break
		}
	}
	if header < 0 {
		return rating.PoolSheet{}, errs.WrapKind(op, errs.ErrValidation, ErrMissingHeader)
	}

	body := rows[header+1:]
	for _, row := range body {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			break
		}
		sheet.Entrants = append(sheet.Entrants, strings.TrimSpace(row[0]))
	}
	n := len(sheet.Entrants)
	if n == 0 {
		return rating.PoolSheet{}, errs.WrapKind(op, errs.ErrValidation, ErrNoEntrants)
	}

	sheet.Scores = make([][]*int, n)
	for i := 0; i < n; i++ {
		sheet.Scores[i] = make([]*int, n)
		row := body[i]
		for j := 0; j < n; j++ {
			if i == j || 2+j >= len(row) {
				continue
			}
			v, ok, err := parseCell(row[2+j], cfg.victoryScore)
			if err != nil {
				cell, _ := excelize.CoordinatesToCellName(3+j, header+2+i)
				return rating.PoolSheet{}, errs.Validationf(op, "%w: %s %q", ErrBadCell, cell, row[2+j])
			}
			if ok {
				sheet.Scores[i][j] = &v
			}
		}
	}

	sheet.ID = cfg.poolID
	if sheet.ID == "" {
		sheet.ID = "pool-" + strconv.Itoa(sheet.Number)
	}
	return sheet, nil
}

func poolNumber(first string, row []string) (int, bool) {
	fields := strings.Fields(first)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "Pool") {
		return 0, false
	}
	raw := ""
	switch {
	case len(fields) > 1:
		raw = fields[1]
	case len(row) > 1:
		raw = strings.TrimSpace(row[1])
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseCell(raw string, victory int) (int, bool, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return 0, false, nil
	}
	if s == "V" {
		return victory, true, nil
	}
	if s[0] == 'V' || s[0] == 'D' {
		s = s[1:]
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false, ErrBadCell
	}
	return v, true, nil
}

// PoolTemplate writes an empty sheet in the layout ImportPool reads.
func PoolTemplate(w io.Writer, number int, ids, names []string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	if err := setRow(f, sheet, 1, []any{"Pool", number}); err != nil {
		return err
	}
	header := []any{"ID", "Name"}
	for i := range ids {
		header = append(header, i+1)
	}
	if err := setRow(f, sheet, 2, header); err != nil {
		return err
	}
	for i, id := range ids {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if err := setRow(f, sheet, 3+i, []any{id, name}); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// PoolWorkbook builds a filled pool sheet in memory, mainly for tooling and tests.
func PoolWorkbook(p rating.PoolSheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	if err := setRow(f, sheet, 1, []any{"Pool", p.Number}); err != nil {
		return nil, err
	}
	header := []any{"ID", "Name"}
	for i := range p.Entrants {
		header = append(header, i+1)
	}
	if err := setRow(f, sheet, 2, header); err != nil {
		return nil, err
	}
	for i, id := range p.Entrants {
		row := []any{id, ""}
		for j := range p.Entrants {
			var cell any = ""
			if i < len(p.Scores) && j < len(p.Scores[i]) && p.Scores[i][j] != nil {
				cell = *p.Scores[i][j]
			}
			row = append(row, cell)
		}
		if err := setRow(f, sheet, 3+i, row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, axis, &cells)
}
