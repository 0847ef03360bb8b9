package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"evalconsole/internal/domain/evaluation"
)

func objectiveCmd() *cobra.Command {
	obj := &cobra.Command{Use: "objective", Short: "Manage an evaluation's objectives"}
	obj.AddCommand(objectiveSaveCmd(false))
	obj.AddCommand(objectiveSaveCmd(true))
	obj.AddCommand(&cobra.Command{
		Use:   "delete <evaluation-id> <objective-id>",
		Short: "Delete an objective",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				return c.Evaluations.DeleteObjective(ctx, c.actor(), args[0], args[1])
			})
		},
	})
	return obj
}

type objectiveFlags struct {
	title, description, status string
	target, achieved, weight   float64
}

func (f *objectiveFlags) bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.title, "title", "", "title")
	flags.StringVar(&f.description, "description", "", "description")
	flags.StringVar(&f.status, "status", string(evaluation.ObjectiveNotStarted), "Not started, In-progress or Completed")
	flags.Float64Var(&f.target, "target", 0, "target value")
	flags.Float64Var(&f.achieved, "achieved", 0, "achieved value")
	flags.Float64Var(&f.weight, "weight", 0, "weight in percent (10-40)")
}

// apply copies the flags the user set onto o.
func (f *objectiveFlags) apply(flags *pflag.FlagSet, o *evaluation.Objective) {
	if flags.Changed("title") {
		o.Title = f.title
	}
	if flags.Changed("description") {
		o.Description = f.description
	}
	if flags.Changed("status") || o.Status == "" {
		o.Status = evaluation.ObjectiveStatus(f.status)
	}
	if flags.Changed("target") {
		o.Target = f.target
	}
	if flags.Changed("achieved") {
		o.Achieved = f.achieved
	}
	if flags.Changed("weight") {
		o.Weight = f.weight
	}
}

func objectiveSaveCmd(update bool) *cobra.Command {
	var f objectiveFlags
	use, short, nargs := "add <evaluation-id>", "Add an objective", 1
	if update {
		use, short, nargs = "update <evaluation-id> <objective-id>", "Update an objective", 2
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				o := evaluation.Objective{EvaluationID: args[0]}
				if update {
					existing, err := findObjective(ctx, c, args[0], args[1])
					if err != nil {
						return err
					}
					o = existing
				}
				f.apply(cmd.Flags(), &o)
				var saved evaluation.Objective
				var err error
				if update {
					saved, err = c.Evaluations.UpdateObjective(ctx, c.actor(), o)
				} else {
					saved, err = c.Evaluations.AddObjective(ctx, c.actor(), o)
				}
				if err != nil {
					return err
				}
				return render(saved, nil)
			})
		},
	}
	f.bind(cmd.Flags())
	return cmd
}

func findObjective(ctx context.Context, c *console, evaluationID, objectiveID string) (evaluation.Objective, error) {
	d, err := c.Evaluations.Details(ctx, c.actor(), evaluationID)
	if err != nil {
		return evaluation.Objective{}, err
	}
	for _, o := range d.Objectives {
		if o.ID == objectiveID {
			return o, nil
		}
	}
	return evaluation.Objective{}, fmt.Errorf("objective %s not found on evaluation %s", objectiveID, evaluationID)
}

func competencyCmd() *cobra.Command {
	comp := &cobra.Command{Use: "competency", Short: "Manage an evaluation's competencies"}
	comp.AddCommand(competencySaveCmd(false))
	comp.AddCommand(competencySaveCmd(true))
	comp.AddCommand(&cobra.Command{
		Use:   "delete <evaluation-id> <competency-id>",
		Short: "Delete a competency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				return c.Evaluations.DeleteCompetency(ctx, c.actor(), args[0], args[1])
			})
		},
	})
	return comp
}

type competencyFlags struct {
	name, category, description string
	required, actual, weight    float64
}

func (f *competencyFlags) bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "name")
	flags.StringVar(&f.category, "category", string(evaluation.CategoryCore), "Core, Leadership or Functional")
	flags.StringVar(&f.description, "description", "", "description")
	flags.Float64Var(&f.required, "required", 0, "required level (0-4)")
	flags.Float64Var(&f.actual, "actual", 0, "actual level (0-4)")
	flags.Float64Var(&f.weight, "weight", 0, "weight in percent")
}

func (f *competencyFlags) apply(flags *pflag.FlagSet, comp *evaluation.Competency) {
	if flags.Changed("name") {
		comp.Name = f.name
	}
	if flags.Changed("category") || comp.Category == "" {
		comp.Category = evaluation.Category(f.category)
	}
	if flags.Changed("description") {
		comp.Description = f.description
	}
	if flags.Changed("required") {
		comp.RequiredLevel = f.required
	}
	if flags.Changed("actual") {
		comp.ActualLevel = f.actual
	}
	if flags.Changed("weight") {
		comp.Weight = f.weight
	}
}

func competencySaveCmd(update bool) *cobra.Command {
	var f competencyFlags
	use, short, nargs := "add <evaluation-id>", "Add a competency", 1
	if update {
		use, short, nargs = "update <evaluation-id> <competency-id>", "Update a competency", 2
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				comp := evaluation.Competency{EvaluationID: args[0]}
				if update {
					d, err := c.Evaluations.Details(ctx, c.actor(), args[0])
					if err != nil {
						return err
					}
					found := false
					for _, existing := range d.Competencies {
						if existing.ID == args[1] {
							comp, found = existing, true
						}
					}
					if !found {
						return fmt.Errorf("competency %s not found on evaluation %s", args[1], args[0])
					}
				}
				f.apply(cmd.Flags(), &comp)
				var saved evaluation.Competency
				var err error
				if update {
					saved, err = c.Evaluations.UpdateCompetency(ctx, c.actor(), comp)
				} else {
					saved, err = c.Evaluations.AddCompetency(ctx, c.actor(), comp)
				}
				if err != nil {
					return err
				}
				return render(saved, nil)
			})
		},
	}
	f.bind(cmd.Flags())
	return cmd
}
