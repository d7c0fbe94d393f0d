package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caiga/companion/internal/replay"
)

var (
	replayFixture string
	replayJSON    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded session fixture through a fresh engine",
	Long: `replay runs each fixture step through the rule classifier, scorer, and gate on a
simulated clock, then compares the outcome with the step's expectation. It exits
non-zero when any step diverges.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to a replay fixture JSON file")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "output results as JSON")
	replayCmd.MarkFlagRequired("fixture")
	rootCmd.AddCommand(replayCmd)
}

// #region replay

type replayRow struct {
	ID          string  `json:"id"`
	AtSeconds   float64 `json:"at_seconds"`
	Expected    string  `json:"expected,omitempty"`
	Phase       string  `json:"phase"`
	ExpectLabel string  `json:"expect_label,omitempty"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Text        string  `json:"text,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Match       bool    `json:"match"`
}

type replayOutput struct {
	Description string      `json:"description"`
	Steps       []replayRow `json:"steps"`
	Dispatched  int         `json:"dispatched"`
	Rejected    int         `json:"rejected"`
	Suppressed  int         `json:"suppressed"`
	Failed      int         `json:"failed"`
	Diverged    int         `json:"diverged"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(replayFixture)
	if err != nil {
		return err
	}
	steps, err := f.ToSteps()
	if err != nil {
		return err
	}
	table, err := f.ToTable()
	if err != nil {
		return err
	}

	results, summary, err := replay.Replay(context.Background(), steps, table, f.Config.ToEngineConfig(), f.Start)
	if err != nil {
		return err
	}

	out := replayOutput{
		Description: f.Description,
		Dispatched:  summary.Dispatched,
		Rejected:    summary.Rejected,
		Suppressed:  summary.Suppressed,
		Failed:      summary.Failed,
	}
	for i, r := range results {
		exp := f.Steps[i]
		row := replayRow{
			ID:          r.ID,
			AtSeconds:   r.At.Seconds(),
			Expected:    exp.Expect,
			Phase:       string(r.Phase),
			ExpectLabel: exp.ExpectLabel,
			Label:       r.Label,
			Confidence:  r.Confidence,
			Text:        r.Text,
			Reason:      r.Reason,
			Match:       (exp.Expect == "" || exp.Expect == string(r.Phase)) && (exp.ExpectLabel == "" || exp.ExpectLabel == r.Label),
		}
		if !row.Match {
			out.Diverged++
		}
		out.Steps = append(out.Steps, row)
	}

	if replayJSON {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		printReplay(out)
	}
	if out.Diverged > 0 {
		return fmt.Errorf("%d of %d steps diverged from the fixture", out.Diverged, len(out.Steps))
	}
	return nil
}

func printReplay(out replayOutput) {
	if out.Description != "" {
		fmt.Printf("%s\n\n", out.Description)
	}
	fmt.Printf("%-28s| %7s | %-11s| %-11s| %-14s| %s\n", "Step", "At", "Expected", "Replayed", "Label", "Match")
	fmt.Printf("%-28s+-%7s-+%-11s+%-11s+%-14s+%s\n",
		"----------------------------", "-------", "-----------", "-----------", "--------------", "------")
	for _, r := range out.Steps {
		match := "OK"
		if !r.Match {
			match = "DIVERGE"
		}
		exp := r.Expected
		if exp == "" {
			exp = "-"
		}
		fmt.Printf("%-28s| %6.1fs | %-11s| %-11s| %-14s| %s\n", r.ID, r.AtSeconds, exp, r.Phase, r.Label, match)
		if r.Text != "" {
			fmt.Printf("%-28s|         |   -> %s\n", "", r.Text)
		}
	}
	fmt.Printf("\nSummary: %d steps, %d dispatched, %d rejected, %d suppressed, %d failed, %d diverge\n",
		len(out.Steps), out.Dispatched, out.Rejected, out.Suppressed, out.Failed, out.Diverged)
}

// #endregion replay
