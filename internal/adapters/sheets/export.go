package sheets

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
)

const (
	rankingSheet   = "Ranking"
	standingsSheet = "Standings"
)

// ExportRanking writes the ranking table as a single-sheet workbook.
func ExportRanking(w io.Writer, r rating.Ranking) error {
	rows := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, []any{
			row.Rank, row.Entrant.ID, row.Entrant.Name(), row.Entrant.Club, row.Entrant.Rating,
			row.Entrant.Strength, row.WinShare, row.Wins, row.Losses,
			row.TouchesScored, row.TouchesReceived, row.Indicator,
		})
	}
	header := []any{"Rank", "ID", "Name", "Club", "Rating", "Strength", "Win share %", "W", "L", "TS", "TR", "Ind"}
	return writeTable(w, rankingSheet, header, rows)
}

// ExportStandings writes final places of a completed bracket. An unfinished
// bracket yields a header-only sheet.
func ExportStandings(w io.Writer, b *bracket.Bracket) error {
	rows := make([][]any, 0, len(b.Standings))
	for _, s := range b.Standings {
		c := s.Competitor
		rows = append(rows, []any{s.Place, c.Seed, c.ID, c.Name(), c.Club})
	}
	return writeTable(w, standingsSheet, []any{"Place", "Seed", "ID", "Name", "Club"}, rows)
}

func writeTable(w io.Writer, name string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), name); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := setRow(f, name, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, name, 2+i, row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}
