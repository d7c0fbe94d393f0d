package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/caiga/companion/internal/config"
	"github.com/caiga/companion/internal/logging"
	"github.com/caiga/companion/internal/state"
)

var (
	inspectDB   string
	inspectLast int
	inspectJSON bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show recent decisions, feedback, and cooldown state from the database",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "path to companion.db (defaults to the configured data dir)")
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent decisions and feedback rows")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of tables")
	rootCmd.AddCommand(inspectCmd)
}

// #region inspect

type decisionRow struct {
	ID         string  `json:"id"`
	CreatedAt  string  `json:"created_at"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
	Formatted  bool    `json:"formatted"`
	SourceRef  string  `json:"source_ref"`
}

type feedbackRow struct {
	DecisionTimestamp float64 `json:"decision_timestamp"`
	Label             string  `json:"label"`
	Accepted          bool    `json:"accepted"`
	ReceivedAt        string  `json:"received_at"`
}

type inspectOutput struct {
	Decisions []decisionRow     `json:"decisions"`
	Feedback  []feedbackRow     `json:"feedback"`
	State     state.EngineState `json:"state"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := inspectDB
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		path = cfg.DBPath()
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	store, err := state.NewStore(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	decisions, err := logging.RecentDecisions(store.DB(), inspectLast)
	if err != nil {
		return err
	}
	feedback, err := logging.RecentFeedback(store.DB(), inspectLast)
	if err != nil {
		return err
	}

	out := inspectOutput{State: store.Load()}
	for _, d := range decisions {
		out.Decisions = append(out.Decisions, decisionRow{
			ID:         d.ID,
			CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
			Label:      d.Label,
			Confidence: d.Confidence,
			Text:       d.ChosenText,
			Formatted:  d.UsedExternalFormatter,
			SourceRef:  d.SourceRef,
		})
	}
	for _, f := range feedback {
		out.Feedback = append(out.Feedback, feedbackRow{
			DecisionTimestamp: f.DecisionTimestamp,
			Label:             f.Label,
			Accepted:          f.Accepted,
			ReceivedAt:        f.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}

	if inspectJSON {
		return printJSON(out)
	}
	printInspect(out)
	return nil
}

func printInspect(out inspectOutput) {
	fmt.Printf("%-20s  %-14s  %6s  %-3s  %-12s  %s\n", "CREATED", "LABEL", "CONF", "FMT", "SOURCE", "TEXT")
	fmt.Printf("%-20s+-%-14s+-%6s+-%-3s+-%-12s+-%s\n", "--------------------", "--------------", "------", "---", "------------", "----")
	for _, d := range out.Decisions {
		fmtFlag := "-"
		if d.Formatted {
			fmtFlag = "llm"
		}
		fmt.Printf("%-20s  %-14s  %6.2f  %-3s  %-12s  %s\n", d.CreatedAt, d.Label, d.Confidence, fmtFlag, d.SourceRef, d.Text)
	}

	if len(out.Feedback) > 0 {
		fmt.Printf("\nFeedback:\n")
		for _, f := range out.Feedback {
			verdict := "rejected"
			if f.Accepted {
				verdict = "accepted"
			}
			fmt.Printf("  %-20s  %-14s  %-8s  (decision %.0f)\n", f.ReceivedAt, f.Label, verdict, f.DecisionTimestamp)
		}
	}

	ledger := out.State.Ledger
	fmt.Printf("\nCooldowns:\n")
	if ledger.Global.IsZero() {
		fmt.Printf("  %-14s never\n", "global")
	} else {
		fmt.Printf("  %-14s %s\n", "global", ledger.Global.UTC().Format(time.RFC3339))
	}
	for _, label := range sortedKeys(ledger.Labels) {
		fmt.Printf("  %-14s %s\n", label, ledger.Labels[label].UTC().Format(time.RFC3339))
	}

	counters := out.State.Counters
	fmt.Printf("\nCounters (posted / accepted):\n")
	labels := sortedKeys(counters.Posted)
	for _, l := range sortedKeys(counters.Accepted) {
		if _, ok := counters.Posted[l]; !ok {
			labels = append(labels, l)
		}
	}
	for _, label := range labels {
		fmt.Printf("  %-14s %4d / %d\n", label, counters.Posted[label], counters.Accepted[label])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion inspect
