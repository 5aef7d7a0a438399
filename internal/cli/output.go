package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gauntlet/internal/standings"
)

func writeStandings(w io.Writer, title string, rows []standings.RoundStanding) error {
	fmt.Fprintln(w, title)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTRATEGY\tSCORE\tMATCHES\tCOOP%\tFORFEITS\tPENALTIES\tMEAN\tSTDDEV")
	for _, s := range rows {
		if s.Excluded {
			fmt.Fprintf(tw, "%d\t%s\t%d\t-\t-\t-\t-\t-\texcluded\n", s.Rank, s.StrategyID, s.TotalScore)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.1f\t%d\t%d\t%.1f\t%.1f\n",
			s.Rank, s.StrategyID, s.TotalScore, s.MatchesPlayed, 100*s.CooperationRate,
			s.Forfeits, s.Penalties, s.MeanMatchScore, s.ScoreStdDev)
	}
	return tw.Flush()
}

// writeJSONFile writes v to path through a temp file and rename.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gauntlet-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
