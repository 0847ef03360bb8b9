package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/platform/report"
)

func evalCmd() *cobra.Command {
	ev := &cobra.Command{Use: "eval", Short: "Work with evaluations"}
	ev.AddCommand(evalListCmd())
	ev.AddCommand(evalShowCmd())
	ev.AddCommand(evalCreateCmd())
	ev.AddCommand(evalTransitionCmd())
	ev.AddCommand(evalCommentCmd())
	ev.AddCommand(evalSelfSubmitCmd())
	ev.AddCommand(evalReportCmd())
	return ev
}

func evalListCmd() *cobra.Command {
	var f evaluation.ListFilter
	var status, typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List evaluations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				f.Status = evaluation.ParseStatus(status)
			}
			f.Type = evaluation.ParseType(typ)
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				items, err := c.Evaluations.List(ctx, c.actor(), f)
				if err != nil {
					return err
				}
				return render(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Employee", "Type", "Period", "Status", "Score"})
					for _, e := range items {
						employee := e.EmployeeName
						if employee == "" {
							employee = e.EmployeeID
						}
						tw.AppendRow(table.Row{e.ID, employee, e.Type, e.Period, e.Status, optionalFloat(e.Score)})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&typ, "type", "", "type filter")
	cmd.Flags().StringVar(&f.Period, "period", "", "period filter")
	cmd.Flags().StringVar(&f.EmployeeID, "employee", "", "employee id filter")
	cmd.Flags().StringVar(&f.ReviewerID, "reviewer", "", "reviewer id filter")
	return cmd
}

func evalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <evaluation-id>",
		Short: "Show an evaluation with scores, objectives, competencies and activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				d, err := c.Evaluations.Details(ctx, c.actor(), args[0])
				if err != nil {
					return err
				}
				if viper.GetString("output") != "table" {
					return render(d, nil)
				}
				printDetails(d, c.Evaluations.Location)
				return nil
			})
		},
	}
}

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)
	return tw
}

func printDetails(d evaluation.Details, loc *time.Location) {
	e := d.Evaluation
	tw := newTable(fmt.Sprintf("%s evaluation %s (%s)", e.Type, e.Period, e.ID))
	tw.AppendRow(table.Row{"Status", fmt.Sprintf("%s  [%d/%d]", e.Status, d.Progress.Index+1, d.Progress.Total)})
	tw.AppendRow(table.Row{"Objectives score", d.Scores.Objectives.String()})
	tw.AppendRow(table.Row{"Competencies score", d.Scores.Competencies.String()})
	tw.AppendRow(table.Row{"Overall", fmt.Sprintf("%.1f", d.Scores.Combined)})
	tw.AppendRow(table.Row{"Remaining objective weight", fmt.Sprintf("%.0f%%", d.RemainingObjectiveWeight)})
	actions := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		actions = append(actions, string(a))
	}
	tw.AppendRow(table.Row{"Available actions", strings.Join(actions, ", ")})
	tw.Render()

	objectives := newTable("Objectives")
	objectives.AppendHeader(table.Row{"ID", "Title", "Target", "Achieved", "Weight", "Status"})
	for _, o := range d.Objectives {
		objectives.AppendRow(table.Row{o.ID, o.Title, o.Target, o.Achieved, fmt.Sprintf("%.0f%%", evaluation.ToPercent(o.Weight)), o.Status})
	}
	objectives.Render()

	competencies := newTable("Competencies")
	competencies.AppendHeader(table.Row{"ID", "Name", "Category", "Required", "Actual", "Weight"})
	for _, comp := range d.Competencies {
		competencies.AppendRow(table.Row{comp.ID, comp.Name, comp.Category, comp.RequiredLevel, comp.ActualLevel, fmt.Sprintf("%.0f%%", evaluation.ToPercent(comp.Weight))})
	}
	competencies.Render()

	feed := newTable("Activity")
	feed.AppendHeader(table.Row{"Time", "Action", "Status", "Actor", "Comment"})
	for _, day := range d.Feed {
		feed.AppendSeparator()
		for _, entry := range day.Entries {
			feed.AppendRow(table.Row{
				entry.Timestamp.In(loc).Format("2006-01-02 15:04"),
				entry.Action,
				entry.Status,
				entry.Actor,
				entry.Comment,
			})
		}
	}
	feed.Render()
}

func evalCreateCmd() *cobra.Command {
	var in evaluation.NewEvaluation
	var typ string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Type = evaluation.ParseType(typ)
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				created, err := c.Evaluations.CreateEvaluation(ctx, c.actor(), in)
				if err != nil {
					return err
				}
				return render(created, nil)
			})
		},
	}
	cmd.Flags().StringVar(&in.EmployeeID, "employee", "", "employee id")
	cmd.Flags().StringVar(&typ, "type", string(evaluation.TypeQuarterly), "Quarterly, Annual, Optional or Self Evaluation")
	cmd.Flags().StringVar(&in.Period, "period", "", "review period, e.g. 2025-Q3")
	cmd.Flags().StringVar(&in.ReviewerID, "reviewer", "", "reviewer id")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func printTransition(res evaluation.TransitionResult) error {
	return render(res, func(tw table.Writer) {
		tw.AppendRow(table.Row{"From", res.From})
		tw.AppendRow(table.Row{"To", res.To})
		tw.AppendRow(table.Row{"Logged", res.Entry.Action})
		if res.Entry.Comment != "" {
			tw.AppendRow(table.Row{"Comment", res.Entry.Comment})
		}
	})
}

func evalTransitionCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "transition <evaluation-id> <submit|approve|reject|complete|acknowledge>",
		Short: "Move an evaluation along its approval line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := evaluation.ParseAction(args[1])
			if !ok {
				return fmt.Errorf("unknown action %q", args[1])
			}
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				res, err := c.Evaluations.Apply(ctx, c.actor(), args[0], action, strings.TrimSpace(comment))
				if err != nil {
					return err
				}
				return printTransition(res)
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment (required to reject)")
	return cmd
}

func evalCommentCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "comment <evaluation-id>",
		Short: "Add a comment to the activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				res, err := c.Evaluations.Apply(ctx, c.actor(), args[0], evaluation.ActionComment, strings.TrimSpace(comment))
				if err != nil {
					return err
				}
				return printTransition(res)
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "comment text")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func evalSelfSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-submit <evaluation-id>",
		Short: "Submit your self evaluation to your head of department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				res, err := c.Evaluations.SubmitSelfEvaluation(ctx, c.actor(), args[0])
				if err != nil {
					return err
				}
				return printTransition(res)
			})
		},
	}
}

func evalReportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report <evaluation-id>",
		Short: "Write the evaluation as a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "evaluation-" + args[0] + ".pdf"
			}
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				d, err := c.Evaluations.Details(ctx, c.actor(), args[0])
				if err != nil {
					return err
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := report.EvaluationPDF(f, d, c.Evaluations.Location); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "f", "", "output file")
	return cmd
}
