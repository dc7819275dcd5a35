package simtool

import (
	"bytes"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/piste/internal/domain/rating"
)

const (
	chartWidth  = 960
	chartHeight = 480
	noDataMsg   = "Not enough fits to chart"
)

// TrajectoryChart renders the strength of the top entrants after every fit
// as a PNG line chart. Fewer than two snapshots render a placeholder.
func TrajectoryChart(snaps []rating.Snapshot, entrants []rating.Entrant, top int) ([]byte, error) {
	if len(snaps) < 2 || len(entrants) == 0 {
		return renderPlaceholder()
	}

	ranked := make([]rating.Entrant, len(entrants))
	copy(ranked, entrants)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Strength > ranked[j].Strength })
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	maxY := 0.0
	series := make([]chart.Series, 0, len(ranked))
	for i, e := range ranked {
		xs := make([]float64, 0, len(snaps))
		ys := make([]float64, 0, len(snaps))
		for _, s := range snaps {
			v, ok := s.Strengths[e.ID]
			if !ok {
				continue
			}
			xs = append(xs, float64(s.Seq))
			ys = append(ys, v)
			if v > maxY {
				maxY = v
			}
		}
		if len(xs) == 0 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    e.Name(),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
				DotWidth:    3,
				DotColor:    chart.GetDefaultColor(i),
			},
		})
	}
	if len(series) == 0 || maxY <= 0 {
		return renderPlaceholder()
	}

	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding:   chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
			FillColor: drawing.ColorWhite,
		},
		XAxis: chart.XAxis{
			Name:  "Fit",
			Range: &chart.ContinuousRange{Min: float64(snaps[0].Seq), Max: float64(snaps[len(snaps)-1].Seq)},
		},
		YAxis: chart.YAxis{
			Name:  "Strength",
			Range: &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	buf := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPlaceholder() ([]byte, error) {
	const width, height = 400, 200
	r, err := chart.PNG(width, height)
	if err != nil {
		return nil, err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, err
	}

	r.SetFillColor(drawing.ColorWhite)
	r.MoveTo(0, 0)
	r.LineTo(width, 0)
	r.LineTo(width, height)
	r.LineTo(0, height)
	r.Close()
	r.Fill()

	r.SetFont(font)
	r.SetFontColor(drawing.ColorBlack)
	r.SetFontSize(12.0)
	tb := r.MeasureText(noDataMsg)
	r.Text(noDataMsg, (width-tb.Width())/2, (height+tb.Height())/2)

	buf := bytes.NewBuffer([]byte{})
	if err := r.Save(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
