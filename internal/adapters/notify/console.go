package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Board.
type Console struct {
	out io.Writer
	now func() time.Time
}

// NewConsole crea un board que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter crea un board para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// PrintRuns imprime el histórico de carreras en una tabla.
func (c *Console) PrintRuns(_ context.Context, runs []*domain.Run) error {
	if len(runs) == 0 {
		fmt.Fprintf(c.out, "[%s] no runs yet\n", c.now().Format("15:04:05"))
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Status", "Started", "Bidding ends", "Horses", "Pool", "Winner")

	var totalPool uint64
	for _, r := range runs {
		pool := runPool(r)
		totalPool += pool

		winner := "-"
		if r.Status == domain.StageFinished {
			winner = r.Winner
		}

		table.Append(
			fmt.Sprintf("%d", r.ID),
			statusLabel(r, c.now()),
			r.StartedAt.Format("01-02 15:04"),
			r.BiddingEndsAt.Format("01-02 15:04"),
			fmt.Sprintf("%d", len(r.Horses)),
			fmt.Sprintf("%d", pool),
			winner,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  %d runs | escrowed total: %d\n", len(runs), totalPool)
	return nil
}

// PrintOdds imprime los caballos de un Run con sus depósitos acumulados.
func (c *Console) PrintOdds(_ context.Context, run *domain.Run) error {
	fmt.Fprintf(c.out, "\nRun #%d — %s\n", run.ID, statusLabel(run, c.now()))

	standings := make([]domain.Standing, 0, len(run.Horses))
	for _, s := range run.Horses {
		standings = append(standings, *s)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Total != standings[j].Total {
			return standings[i].Total > standings[j].Total
		}
		return standings[i].Horse.Name < standings[j].Horse.Name
	})

	leader, hasLeader := run.LeadingHorse()
	pool := runPool(run)

	table := tablewriter.NewWriter(c.out)
	table.Header("Horse", "Strength", "Escrowed", "Share", "")

	for _, s := range standings {
		share := "-"
		if pool > 0 {
			share = fmt.Sprintf("%.1f%%", float64(s.Total)/float64(pool)*100)
		}

		mark := ""
		switch {
		case run.Status == domain.StageFinished && s.Horse.Name == run.Winner:
			mark = "WINNER"
		case hasLeader && s.Horse.Name == leader.Horse.Name && s.Total > 0:
			mark = "favorite"
		}

		table.Append(
			s.Horse.Name,
			fmt.Sprintf("%d", s.Horse.Strength),
			fmt.Sprintf("%d", s.Total),
			share,
			mark,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  pool: %d | bidders: %d\n", pool, len(run.Bidders))
	return nil
}

func statusLabel(r *domain.Run, now time.Time) string {
	if r.Status == domain.StageCreated && r.BiddingOpen(now) {
		return "bidding"
	}
	return string(r.Status)
}

func runPool(r *domain.Run) uint64 {
	var total uint64
	for _, s := range r.Horses {
		total += s.Total
	}
	return total
}
