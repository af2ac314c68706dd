package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"

	"cassettereader/reader"
)

type step struct {
	label string
	run   func(e *reader.Engine) error
}

type script struct {
	name  string
	title string
	steps []step
}

const simChannel = 1

func insert(t reader.CassetteType, o reader.Outcome) step {
	return step{
		label: fmt.Sprintf("insert %s (%s)", t, o),
		run: func(e *reader.Engine) error {
			return e.Insert(simChannel, reader.Cassette{Type: t, Outcome: o})
		},
	}
}

func startTest(t reader.CassetteType, p reader.Processing) []step {
	return []step{
		{"configure", func(e *reader.Engine) error { return e.Configure(simChannel) }},
		{fmt.Sprintf("start test (%s)", p), func(e *reader.Engine) error {
			return e.StartTest(simChannel, reader.TestConfig{
				Scenario:     reader.ScenarioTest,
				CassetteType: t,
				Route:        "Route 12",
				OperatorID:   "OP-042",
				Processing:   p,
			})
		}},
	}
}

func ticks(n int) step {
	return step{
		label: fmt.Sprintf("wait %ds", n),
		run: func(e *reader.Engine) error {
			for i := 0; i < n; i++ {
				e.Tick(context.Background())
			}
			return nil
		},
	}
}

func action(label string, fn func(*reader.Engine, int) error) step {
	return step{label: label, run: func(e *reader.Engine) error { return fn(e, simChannel) }}
}

// swapAndRead takes the cassette out, puts a fresh one in, and reads it.
func swapAndRead(t reader.CassetteType, o reader.Outcome, reading int) []step {
	return []step{
		action("remove", (*reader.Engine).Remove),
		insert(t, o),
		action("start next test", (*reader.Engine).StartNextTest),
		ticks(reading),
	}
}

func scripts(timing reader.Timing) []script {
	read := timing.Reading
	return []script{
		{
			name:  "A",
			title: "single negative",
			steps: slices.Concat(
				[]step{insert(reader.Cassette3BTC, reader.OutcomeNegative)},
				startTest(reader.Cassette3BTC, reader.ProcessingReadOnly),
				[]step{ticks(read)},
			),
		},
		{
			name:  "B",
			title: "confirmed positive",
			steps: slices.Concat(
				[]step{insert(reader.Cassette3BTC, reader.OutcomePositive)},
				startTest(reader.Cassette3BTC, reader.ProcessingReadOnly),
				[]step{ticks(read), action("continue", (*reader.Engine).DecisionContinue)},
				swapAndRead(reader.Cassette3BTC, reader.OutcomePositive, read),
			),
		},
		{
			name:  "C",
			title: "tiebreaker",
			steps: slices.Concat(
				[]step{insert(reader.Cassette3BTC, reader.OutcomePositive)},
				startTest(reader.Cassette3BTC, reader.ProcessingReadOnly),
				[]step{ticks(read), action("continue", (*reader.Engine).DecisionContinue)},
				swapAndRead(reader.Cassette3BTC, reader.OutcomeNegative, read),
				[]step{action("continue", (*reader.Engine).DecisionContinue)},
				swapAndRead(reader.Cassette3BTC, reader.OutcomeNegative, read),
			),
		},
		{
			name:  "D",
			title: "type mismatch",
			steps: slices.Concat(
				[]step{insert(reader.Cassette3BTC, reader.OutcomePositive)},
				startTest(reader.Cassette3BTC, reader.ProcessingReadOnly),
				[]step{
					ticks(read),
					action("continue", (*reader.Engine).DecisionContinue),
					action("remove", (*reader.Engine).Remove),
					insert(reader.Cassette2BC, reader.OutcomePositive),
					action("remove", (*reader.Engine).Remove),
					insert(reader.Cassette3BTC, reader.OutcomePositive),
				},
			),
		},
		{
			name:  "E",
			title: "incubation alert timeout",
			steps: slices.Concat(
				[]step{insert(reader.Cassette3BTC, reader.OutcomeNegative)},
				startTest(reader.Cassette3BTC, reader.ProcessingReadIncubate),
				[]step{
					ticks(timing.TempWait + 1),
					action("remove", (*reader.Engine).Remove),
					ticks(timing.AlertWindow),
				},
			),
		},
	}
}

func scenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario [A-E|all]",
		Short: "Run one scripted scenario, or all of them",
		Long: `Run a scripted scenario against a fresh engine on channel 1.

Examples:
  readersim scenario A           # single negative test
  readersim scenario all         # every scenario in order
  readersim scenario C --debug   # include engine debug logs`,
		Args: cobra.ExactArgs(1),
		RunE: runScenario,
	}

	cmd.Flags().Bool("debug", false, "Log engine decisions at debug level")

	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scripted scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range scripts(reader.DefaultTiming()) {
				fmt.Printf("  %s  %s (%d steps)\n", color.New(color.Bold).Sprint(s.name), s.title, len(s.steps))
			}
			return nil
		},
	}
}

func runScenario(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := logging.NewLogger("readersim")
	if debug {
		logger.SetLevel(logging.DEBUG)
	}

	all := scripts(reader.DefaultTiming())
	want := strings.ToUpper(args[0])
	if want != "ALL" {
		i := slices.IndexFunc(all, func(s script) bool { return s.name == want })
		if i < 0 {
			return fmt.Errorf("unknown scenario %q (want A-E or all)", args[0])
		}
		all = all[i : i+1]
	}

	for _, s := range all {
		if err := play(s, logger); err != nil {
			return err
		}
	}
	return nil
}

func play(s script, logger logging.Logger) error {
	e, err := reader.NewEngine(reader.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	e.OnTransition(func(t reader.Transition) {
		fmt.Printf("      %s -> %s  (%s)\n", colorState(t.From), colorState(t.To), t.Cause)
	})

	fmt.Printf("\n%s %s\n", color.New(color.Bold).Sprintf("Scenario %s:", s.name), s.title)
	for _, st := range s.steps {
		fmt.Printf("  %s\n", color.New(color.FgCyan).Sprint(st.label))
		if err := st.run(e); err != nil {
			return fmt.Errorf("scenario %s, %s: %w", s.name, st.label, err)
		}
	}

	final, err := e.Channel(simChannel)
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("  => %s", colorState(final.State))
	if final.GroupResult != reader.GroupUnset {
		summary += fmt.Sprintf(", group %s", final.GroupResult)
	}
	if len(final.TestResults) > 0 {
		summary += fmt.Sprintf(", %d result(s)", len(final.TestResults))
	}
	if final.ErrorMessage != "" {
		summary += fmt.Sprintf(", %q", final.ErrorMessage)
	}
	fmt.Println(summary)
	return nil
}

func colorState(s reader.State) string {
	switch {
	case s.IsError():
		return color.New(color.FgRed).Sprint(s)
	case s == reader.StateComplete:
		return color.New(color.FgGreen).Sprint(s)
	case s.Processing():
		return color.New(color.FgYellow).Sprint(s)
	case s == reader.StateIncubationAlert:
		return color.New(color.FgMagenta).Sprint(s)
	default:
		return string(s)
	}
}
