package simtool

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/okian/piste/internal/adapters/sheets"
	"github.com/okian/piste/internal/domain/simulate"
	"github.com/okian/piste/pkg/logger"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// App builds the piste-sim command line.
func App() *cli.App {
	scenarioFlag := &cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "scenario YAML file", Required: true}
	seedFlag := &cli.Uint64Flag{Name: "seed", Usage: "random seed; 0 picks one from the clock"}

	return &cli.App{
		Name:  "piste-sim",
		Usage: "generate and replay synthetic fencing events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON"},
		},
		Before: func(c *cli.Context) error {
			if err := logger.Init(logger.WithWriter(c.App.ErrWriter), logger.WithJSON(c.Bool("log-json"))); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return logger.SetLevelString(c.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "write a synthetic scenario",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "event", Value: "Open", Usage: "event name"},
					&cli.IntFlag{Name: "entrants", Value: DefaultEntrants},
					&cli.IntFlag{Name: "pool-size", Value: DefaultPoolSize},
					seedFlag,
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file; stdout when empty"},
				},
				Action: generateAction,
			},
			{
				Name:  "rank",
				Usage: "fit a scenario and print the ranking",
				Flags: []cli.Flag{
					scenarioFlag,
					&cli.StringFlag{Name: "xlsx", Usage: "also write the ranking workbook here"},
				},
				Action: rankAction,
			},
			{
				Name:  "bracket",
				Usage: "seed a bracket from pools and fence it out",
				Flags: []cli.Flag{
					scenarioFlag,
					seedFlag,
					&cli.StringFlag{Name: "xlsx", Usage: "also write the standings workbook here"},
				},
				Action: bracketAction,
			},
			{
				Name:  "simulate",
				Usage: "project bracket outcomes",
				Flags: []cli.Flag{
					scenarioFlag,
					seedFlag,
					&cli.IntFlag{Name: "trials", Aliases: []string{"n"}, Value: simulate.DefaultTrials},
				},
				Action: simulateAction,
			},
			{
				Name:  "chart",
				Usage: "render the strength trajectory as PNG",
				Flags: []cli.Flag{
					scenarioFlag,
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "trajectory.png"},
					&cli.IntFlag{Name: "top", Value: 8, Usage: "number of entrants to plot"},
				},
				Action: chartAction,
			},
			{
				Name:  "templates",
				Usage: "write a blank pool workbook per pool",
				Flags: []cli.Flag{
					scenarioFlag,
					&cli.StringFlag{Name: "dir", Value: ".", Usage: "output directory"},
				},
				Action: templatesAction,
			},
			{
				Name:  "submit",
				Usage: "send a scenario to a running server",
				Flags: []cli.Flag{
					scenarioFlag,
					&cli.StringFlag{Name: "url", Value: "http://localhost:8080", EnvVars: []string{"PISTE_URL"}},
					&cli.IntFlag{Name: "workers", Value: 4},
					&cli.DurationFlag{Name: "timeout", Value: defaultTimeout},
				},
				Action: submitAction,
			},
		},
	}
}

func seedOf(c *cli.Context) uint64 {
	if s := c.Uint64("seed"); s != 0 {
		return s
	}
	return uint64(time.Now().UnixNano())
}

func generateAction(c *cli.Context) error {
	sc, err := NewGenerator(seedOf(c)).Scenario(c.String("event"), c.Int("entrants"), c.Int("pool-size"))
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		return WriteScenario(c.App.Writer, sc)
	}
	if err := writeFile(out, func(w io.Writer) error { return WriteScenario(w, sc) }); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "wrote %s: %d entrants in %d pools\n", out, len(sc.Roster), len(sc.Pools))
	return nil
}

func rankAction(c *cli.Context) error {
	sc, err := LoadScenario(c.String("in"))
	if err != nil {
		return err
	}
	res, err := Run(c.Context, sc, RunOptions{})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(res.Ranking.Rows))
	for _, r := range res.Ranking.Rows {
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			r.Entrant.Name(),
			r.Entrant.Rating,
			strconv.FormatFloat(r.Entrant.Strength, 'f', 2, 64),
			strconv.FormatFloat(r.WinShare, 'f', 1, 64) + "%",
			fmt.Sprintf("%d-%d", r.Wins, r.Losses),
			strconv.Itoa(r.Indicator),
		})
	}
	printTable(c.App.Writer, []string{"Rank", "Name", "Rating", "Strength", "Win %", "W-L", "Ind"}, rows)

	if path := c.String("xlsx"); path != "" {
		return writeFile(path, func(w io.Writer) error { return sheets.ExportRanking(w, res.Ranking) })
	}
	return nil
}

func bracketAction(c *cli.Context) error {
	sc, err := LoadScenario(c.String("in"))
	if err != nil {
		return err
	}
	res, err := Run(c.Context, sc, RunOptions{PlayBracket: true, Seed: seedOf(c)})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(res.Bracket.Standings))
	for _, s := range res.Bracket.Standings {
		rows = append(rows, []string{strconv.Itoa(s.Place), s.Competitor.Name(), strconv.Itoa(s.Competitor.Seed)})
	}
	printTable(c.App.Writer, []string{"Place", "Name", "Seed"}, rows)

	if path := c.String("xlsx"); path != "" {
		return writeFile(path, func(w io.Writer) error { return sheets.ExportStandings(w, res.Bracket) })
	}
	return nil
}

func simulateAction(c *cli.Context) error {
	sc, err := LoadScenario(c.String("in"))
	if err != nil {
		return err
	}
	res, err := Run(c.Context, sc, RunOptions{Trials: c.Int("trials"), Seed: seedOf(c)})
	if err != nil {
		return err
	}
	p := res.Projection
	// One column per round won, then the champion share.
	headers := append([]string{"Seed", "Name"}, p.Rounds...)
	rows := make([][]string, 0, len(p.Results))
	for _, r := range p.Results {
		row := []string{strconv.Itoa(r.Competitor.Seed), r.Competitor.Name()}
		for _, a := range append(r.Advancement, r.Champion) {
			row = append(row, strconv.FormatFloat(a, 'f', 1, 64))
		}
		rows = append(rows, row)
	}
	printTable(c.App.Writer, headers, rows)
	_, _ = fmt.Fprintf(c.App.Writer, "%d trials, bracket of %d\n", p.Trials, p.BracketSize)
	return nil
}

func chartAction(c *cli.Context) error {
	sc, err := LoadScenario(c.String("in"))
	if err != nil {
		return err
	}
	res, err := Run(c.Context, sc, RunOptions{})
	if err != nil {
		return err
	}
	png, err := TrajectoryChart(res.Trajectory, res.Entrants, c.Int("top"))
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	out := c.String("out")
	if err := writeFile(out, func(w io.Writer) error { _, err := w.Write(png); return err }); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}

func templatesAction(c *cli.Context) error {
	sc, err := LoadScenario(c.String("in"))
	if err != nil {
		return err
	}
	names := make(map[string]string, len(sc.Roster))
	for _, e := range sc.Roster {
		names[e.ID] = e.FirstName + " " + e.LastName
	}
	dir := c.String("dir")
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for _, p := range sc.Pools {
		labels := make([]string, len(p.Entrants))
		for i, id := range p.Entrants {
			labels[i] = names[id]
		}
		path := fmt.Sprintf("%s/pool-%d.xlsx", dir, p.Number)
		if err := writeFile(path, func(w io.Writer) error { return sheets.PoolTemplate(w, p.Number, p.Entrants, labels) }); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	}
	return nil
}

func submitAction(c *cli.Context) error {
	sc, err := LoadScenario(c.String("in"))
	if err != nil {
		return err
	}
	stats, err := Submit(c.Context, SubmitConfig{
		BaseURL: c.String("url"),
		Workers: c.Int("workers"),
		Timeout: c.Duration("timeout"),
	}, sc)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "pools: %d submitted, %d accepted, %d duplicate, %d failed in %s\n",
		stats.PoolsSubmitted, stats.PoolsAccepted, stats.PoolsDuplicate, stats.PoolsFailed, stats.Duration.Round(time.Millisecond))
	if len(stats.Ranking.Rows) > 0 {
		top := stats.Ranking.Rows[0]
		_, _ = fmt.Fprintf(c.App.Writer, "leader: %s (%.2f)\n", top.Entrant.Name(), top.Entrant.Strength)
	}
	return nil
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(w, t.String())
}
