package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/calendar"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

type planFlags struct {
	destination string
	start       string
	end         string
	budget      float64
	currency    string
	interests   []string
	constraints map[string]string
	userID      string
	icsPath     string
	interactive bool
}

func newPlanCmd(configPath *string) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan one trip and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}

			var planner *tripweaver.Planner
			options := []fx.Option{plannerModule(*configPath), fx.NopLogger, fx.Populate(&planner)}
			if f.interactive {
				approver := newPromptApprover(cmd.InOrStdin(), cmd.ErrOrStderr())
				options = append(options, fx.Provide(func() tripweaver.ApprovalHandler { return approver }))
			}
			app := fx.New(options...)
			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Stop(context.WithoutCancel(ctx))

			state, runErr := planner.Run(ctx, req)
			if state == nil {
				return runErr
			}
			if err := writeJSON(cmd.OutOrStdout(), state.Result()); err != nil {
				return err
			}
			if f.icsPath != "" && state.Itinerary != nil {
				text, err := calendar.Export(state.Itinerary, state.RunID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(f.icsPath, []byte(text), 0o644); err != nil {
					return fmt.Errorf("failed to write calendar: %w", err)
				}
			}
			return runErr
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.destination, "destination", "d", "", "destination city")
	fl.StringVar(&f.start, "start", "", "start date (YYYY-MM-DD)")
	fl.StringVar(&f.end, "end", "", "end date (YYYY-MM-DD)")
	fl.Float64VarP(&f.budget, "budget", "b", 0, "total budget")
	fl.StringVar(&f.currency, "currency", "", "budget currency (default base currency)")
	fl.StringSliceVarP(&f.interests, "interests", "i", nil, "comma separated interests")
	fl.StringToStringVar(&f.constraints, "constraint", nil, "constraints as key=value, e.g. pace=relaxed")
	fl.StringVar(&f.userID, "user", "", "user id recorded with the plan")
	fl.StringVar(&f.icsPath, "ics", "", "also write the itinerary as an iCalendar file")
	fl.BoolVar(&f.interactive, "interactive", false, "ask on the terminal when approval is required")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("budget")
	return cmd
}

func (f planFlags) request() (trip.Request, error) {
	start, err := trip.ParseDate(f.start)
	if err != nil {
		return trip.Request{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := trip.ParseDate(f.end)
	if err != nil {
		return trip.Request{}, fmt.Errorf("invalid --end: %w", err)
	}
	req := trip.Request{
		Destination: f.destination,
		StartDate:   start,
		EndDate:     end,
		Budget:      f.budget,
		Currency:    strings.ToUpper(f.currency),
		Interests:   f.interests,
		UserID:      f.userID,
	}
	if len(f.constraints) > 0 {
		req.Constraints = make(map[string]interface{}, len(f.constraints))
		for k, v := range f.constraints {
			req.Constraints[k] = v
		}
	}
	return req, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptApprover asks for a decision on the terminal. An empty answer
// or end of input terminates the run.
type promptApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptApprover(in io.Reader, out io.Writer) *promptApprover {
	return &promptApprover{in: bufio.NewReader(in), out: out}
}

func (a *promptApprover) RequestApproval(ctx context.Context, req tripweaver.ApprovalRequest) (tripweaver.Decision, error) {
	fmt.Fprintln(a.out, req.Check.Message)
	for {
		fmt.Fprint(a.out, "Proceed? [proceed/terminate]: ")
		line, err := a.readLine(ctx)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "" {
			return tripweaver.DecisionTerminate, nil
		}
		d, err := tripweaver.ParseDecision(line)
		if err != nil {
			fmt.Fprintln(a.out, err)
			continue
		}
		return d, nil
	}
}

func (a *promptApprover) readLine(ctx context.Context) (string, error) {
	lines := make(chan string, 1)
	go func() {
		line, _ := a.in.ReadString('\n')
		lines <- line
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-lines:
		return line, nil
	}
}
