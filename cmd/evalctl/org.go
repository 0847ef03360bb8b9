package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"evalconsole/internal/domain/org"
)

func parseLevel(raw string) (org.Level, error) {
	level, ok := org.ParseLevel(raw)
	if !ok {
		names := make([]string, 0, len(org.Levels))
		for _, l := range org.Levels {
			names = append(names, string(l))
		}
		return "", fmt.Errorf("unknown level %q; want one of %s", raw, strings.Join(names, ", "))
	}
	return level, nil
}

func orgCmd() *cobra.Command {
	o := &cobra.Command{Use: "org", Short: "Browse and edit the organization chart"}
	o.AddCommand(orgListCmd())
	o.AddCommand(orgSaveCmd())
	o.AddCommand(orgDeleteCmd())
	return o
}

func orgListCmd() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "list <level>",
		Short: "List companies, departments, sub-departments, sections or sub-sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[0])
			if err != nil {
				return err
			}
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				units, err := c.Org.ListUnits(ctx, c.User, level, org.ID(parent))
				if err != nil {
					return err
				}
				return render(units, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Code", "Name", "Parent", "Manager"})
					for _, u := range units {
						tw.AppendRow(table.Row{u.ID, u.Code, u.Name, u.ParentID, u.ManagerID})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent unit id")
	return cmd
}

func orgSaveCmd() *cobra.Command {
	var u org.Unit
	var id, parent, manager string
	cmd := &cobra.Command{
		Use:   "save <level>",
		Short: "Create a unit, or update one with --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[0])
			if err != nil {
				return err
			}
			u.Level = level
			u.ID, u.ParentID, u.ManagerID = org.ID(id), org.ID(parent), org.ID(manager)
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				saved, err := c.Org.SaveUnit(ctx, c.User, u)
				if err != nil {
					return err
				}
				return render(saved, nil)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "unit id to update")
	cmd.Flags().StringVar(&u.Name, "name", "", "name")
	cmd.Flags().StringVar(&u.Code, "code", "", "code")
	cmd.Flags().StringVar(&u.Description, "description", "", "description")
	cmd.Flags().StringVar(&parent, "parent", "", "parent unit id")
	cmd.Flags().StringVar(&manager, "manager", "", "manager employee id")
	return cmd
}

func orgDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <level> <id>",
		Short: "Delete a unit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(args[0])
			if err != nil {
				return err
			}
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				return c.Org.DeleteUnit(ctx, c.User, level, org.ID(args[1]))
			})
		},
	}
}

func employeeCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employee", Short: "Look up employees and their placements"}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				items, err := c.Org.ListEmployees(ctx, c.User, search)
				if err != nil {
					return err
				}
				return render(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Number", "Name", "Email", "Job title"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.EmployeeNumber, e.FullName(), e.Email, e.JobTitle})
					}
				})
			})
		},
	}
	list.Flags().StringVar(&search, "search", "", "name, number or email contains")
	emp.AddCommand(list)

	emp.AddCommand(&cobra.Command{
		Use:   "show <employee-id>",
		Short: "Show one employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				e, err := c.Org.GetEmployee(ctx, c.User, org.ID(args[0]))
				if err != nil {
					return err
				}
				return render(e, nil)
			})
		},
	})

	emp.AddCommand(&cobra.Command{
		Use:   "placements <employee-id>",
		Short: "Show where an employee sits and who approves them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				items, err := c.Org.ListPlacements(ctx, c.User, org.ID(args[0]))
				if err != nil {
					return err
				}
				return render(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Company", "Department", "Section", "Line manager", "HoD", "From"})
					for _, p := range items {
						tw.AppendRow(table.Row{p.ID, p.CompanyID, p.DepartmentID, p.SectionID, p.LineManagerID, p.HoDID, p.EffectiveFrom})
					}
				})
			})
		},
	})
	return emp
}

func importCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <employees|org-chart|placements|users> <file>",
		Short: "Upload a spreadsheet; --dry-run validates without committing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := org.ParseImportKind(args[0])
			if !ok {
				return fmt.Errorf("unknown import kind %q", args[0])
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			return withConsole(cmd.Context(), func(ctx context.Context, c *console) error {
				res, err := c.Org.Import(ctx, c.User, kind, filepath.Base(args[1]), f, dryRun)
				if err != nil {
					return err
				}
				return render(res, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Row", "Field", "Problem"})
					for _, issue := range res.Errors {
						tw.AppendRow(table.Row{issue.Row, issue.Field, issue.Message})
					}
					tw.AppendFooter(table.Row{"", fmt.Sprintf("dry run: %t", res.DryRun),
						fmt.Sprintf("%d rows, %d created, %d updated, %d skipped", res.Total, res.Created, res.Updated, res.Skipped)})
				})
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}
