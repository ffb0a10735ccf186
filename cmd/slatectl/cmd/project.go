package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/storage"
)

var (
	projectOwner    string
	projectArchived bool
	projectForce    bool
)

// projectCmd represents the project command group
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project management commands",
	Long: `Commands for inspecting and removing Slate projects.

These commands operate directly on the database file.

Examples:
  # List all projects
  slatectl project list

  # List the projects a collaborator can open
  slatectl project list --owner dee@example.com

  # Show a project's document summary
  slatectl project show <id>

  # Delete a project
  slatectl project delete <id> --force`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Long: `List project metadata, newest first.

With --owner, only projects owned by or shared with that email are listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		filter := storage.ProjectFilter{Member: models.NormalizeEmail(projectOwner)}
		if !projectArchived {
			archived := false
			filter.Archived = &archived
		}

		projects, err := store.Projects().List(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		if output == "json" {
			return writeJSON(cmd.OutOrStdout(), projects)
		}
		renderProjects(cmd.OutOrStdout(), projects)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project's document summary",
	Long:  `Show metadata, shot counts, team and budget totals for one project.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		project, err := store.Projects().GetByID(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project '%s' not found", args[0])
		}

		report := summarize(project)
		if output == "json" {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		renderReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Long: `Delete a project and its document. This cannot be undone.

Collaborators connected to the project keep their local copy until they
reload; their next save recreates it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !projectForce {
			return fmt.Errorf("refusing to delete without --force")
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Projects().Delete(context.Background(), args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("project '%s' not found", args[0])
			}
			return fmt.Errorf("delete project: %w", err)
		}

		fmt.Printf("Project '%s' deleted.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)

	projectListCmd.Flags().StringVar(&projectOwner, "owner", "", "only projects owned by or shared with this email")
	projectListCmd.Flags().BoolVar(&projectArchived, "archived", false, "include archived projects")
	projectDeleteCmd.Flags().BoolVar(&projectForce, "force", false, "confirm deletion")
}

type departmentCrew struct {
	Title string `json:"title"`
	Crew  int    `json:"crew"`
}

// projectReport is what `project show` prints.
type projectReport struct {
	Summary        *models.ProjectSummary `json:"project"`
	Setups         int                    `json:"setups"`
	Shots          int                    `json:"shots"`
	ScheduledShots int                    `json:"scheduledShots"`
	ShootDays      int                    `json:"shootDays"`
	Team           []models.TeamMember    `json:"team"`
	Crew           int                    `json:"crew"`
	Departments    []departmentCrew       `json:"departments,omitempty"`
	Gear           int                    `json:"gear"`
	Budget         models.BudgetSummary   `json:"budget"`
}

func summarize(p *models.Project) projectReport {
	return projectReport{
		Summary:        p.Summary(),
		Setups:         len(p.Setups),
		Shots:          p.ShotCount(),
		ScheduledShots: p.ScheduledShotCount(),
		ShootDays:      len(p.Schedule),
		Team:           p.Team,
		Crew:           len(p.Production.Crew),
		Departments:    crewByDepartment(&p.Production),
		Gear:           len(p.Production.Gear),
		Budget:         p.Production.BudgetSummary(),
	}
}

func crewByDepartment(prod *models.Production) []departmentCrew {
	depts := make([]departmentCrew, 0, len(prod.Departments))
	for _, d := range prod.Departments {
		depts = append(depts, departmentCrew{Title: d.Title, Crew: len(prod.CrewInDepartment(d.ID))})
	}
	return depts
}

func renderProjects(w io.Writer, projects []*models.ProjectSummary) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "TITLE", "OWNER", "FAV", "ARCHIVED", "UPDATED"})
	for _, p := range projects {
		tw.AppendRow(table.Row{
			p.ID,
			p.Title,
			p.Owner,
			yesNo(p.Favorite),
			yesNo(p.Archived),
			p.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintf(w, "%s\n\nTotal: %d project(s)\n", tw.Render(), len(projects))
}

func renderReport(w io.Writer, r projectReport) {
	fmt.Fprintf(w, "%s (%s)\n", r.Summary.Title, r.Summary.ID)
	fmt.Fprintf(w, "  Owner:    %s\n", r.Summary.Owner)
	fmt.Fprintf(w, "  Created:  %s\n", r.Summary.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Updated:  %s\n", r.Summary.UpdatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Setups:   %d\n", r.Setups)
	fmt.Fprintf(w, "  Shots:    %d (%d scheduled over %d day(s))\n", r.Shots, r.ScheduledShots, r.ShootDays)
	fmt.Fprintf(w, "  Crew:     %d, gear items: %d\n", r.Crew, r.Gear)

	for _, d := range r.Departments {
		fmt.Fprintf(w, "    %-20s %d\n", d.Title, d.Crew)
	}

	if len(r.Team) > 0 {
		tw := newTable()
		tw.AppendHeader(table.Row{"TEAM", "ROLE"})
		for _, m := range r.Team {
			tw.AppendRow(table.Row{m.Email, m.Role})
		}
		fmt.Fprintf(w, "\n%s\n", tw.Render())
	}

	tw := newTable()
	tw.AppendHeader(table.Row{"BUDGET", "AMOUNT"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tw.AppendRow(table.Row{"Estimated", money(r.Budget.TotalEstimated)})
	tw.AppendRow(table.Row{"Actual", money(r.Budget.TotalActual)})
	tw.AppendRow(table.Row{"Remaining", money(r.Budget.Remaining)})

	categories := make([]string, 0, len(r.Budget.ByCategory))
	for c := range r.Budget.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		tw.AppendRow(table.Row{"  " + c, money(r.Budget.ByCategory[c])})
	}
	fmt.Fprintf(w, "\n%s\n", tw.Render())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
