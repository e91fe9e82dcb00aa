package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/intentcfg/internal/health"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/output"
)

var (
	versionStatusFilter string
	versionNotes        string
	versionCopyFrom     string
	versionName         string
	versionForce        bool
	versionImportName   string
	versionExportOut    string
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"ver"},
	Short:   "Manage configuration versions",
}

var versionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configuration versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionListRun()
	},
}

var versionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a version (default: the active version)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return versionShowRun(id)
	},
}

var versionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a candidate version, optionally copying another version's patterns and templates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionCreateRun(args[0])
	},
}

var versionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename a version or change its notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionUpdateRun(cmd, args[0])
	},
}

var versionPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Make a candidate the active version, archiving the previous one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionPromoteRun(args[0])
	},
}

var versionArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a version",
	Long: `Archive a candidate version. Archiving the active version requires
--force and leaves the system with no active version until another
candidate is promoted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionArchiveRun(args[0])
	},
}

var versionExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a version's patterns and templates as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionExportRun(args[0])
	},
}

var versionImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML snapshot as a new candidate version ('-' reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionImportRun(args[0])
	},
}

var versionDiffCmd = &cobra.Command{
	Use:   "diff <from-id> <to-id>",
	Short: "Show pattern differences between two versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionDiffRun(args[0], args[1])
	},
}

var versionHealthCmd = &cobra.Command{
	Use:   "health [id]",
	Short: "Score a version's health (default: the active version)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return versionHealthRun(id)
	},
}

func init() {
	versionListCmd.Flags().StringVar(&versionStatusFilter, "status", "", "Filter by status (candidate, active, archived)")
	versionCreateCmd.Flags().StringVar(&versionNotes, "notes", "", "Version notes")
	versionCreateCmd.Flags().StringVar(&versionCopyFrom, "copy-from", "", "Version id to copy patterns and templates from")
	versionUpdateCmd.Flags().StringVar(&versionName, "name", "", "New name")
	versionUpdateCmd.Flags().StringVar(&versionNotes, "notes", "", "New notes")
	versionArchiveCmd.Flags().BoolVar(&versionForce, "force", false, "Allow archiving the active version")
	versionImportCmd.Flags().StringVar(&versionImportName, "name", "", "Name for the imported version (default: snapshot name)")
	versionExportCmd.Flags().StringVarP(&versionExportOut, "output", "o", "", "Write to file instead of stdout")

	versionCmd.AddCommand(versionListCmd, versionShowCmd, versionCreateCmd, versionUpdateCmd,
		versionPromoteCmd, versionArchiveCmd, versionExportCmd, versionImportCmd, versionDiffCmd, versionHealthCmd)
	rootCmd.AddCommand(versionCmd)
}

func versionListRun() error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	versions, err := svc.versions.ListVersions(context.Background(), models.VersionStatus(versionStatusFilter))
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(versions)
	}
	if len(versions) == 0 {
		ui.Info("No versions. Create one with: intentcfg version create <name>")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Status", "Patterns", "Templates", "Created"})
	for _, v := range versions {
		_ = table.Append([]string{
			v.ID,
			v.Name,
			output.StatusColor(string(v.Status)),
			fmt.Sprint(v.PatternCount),
			fmt.Sprint(v.TemplateCount),
			v.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return table.Render()
}

func versionShowRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	v, err := svc.harness.ResolveVersion(ctx, id)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(v)
	}
	printVersion(v)
	return nil
}

func printVersion(v *models.ConfigVersion) {
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(v.Name), output.StatusColor(string(v.Status)))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", v.ID)
	if v.Notes != "" {
		fmt.Fprintf(ui.Out, "  Notes:      %s\n", v.Notes)
	}
	fmt.Fprintf(ui.Out, "  Patterns:   %d\n", v.PatternCount)
	fmt.Fprintf(ui.Out, "  Templates:  %d\n", v.TemplateCount)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", v.CreatedAt.Local().Format(time.DateTime))
	if v.ActivatedAt != nil {
		fmt.Fprintf(ui.Out, "  Activated:  %s\n", v.ActivatedAt.Local().Format(time.DateTime))
	}
	if v.ArchivedAt != nil {
		fmt.Fprintf(ui.Out, "  Archived:   %s\n", v.ArchivedAt.Local().Format(time.DateTime))
	}
}

func versionCreateRun(name string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	v, err := svc.versions.CreateVersion(context.Background(), name, versionNotes, versionCopyFrom)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(v)
	}
	ui.Success("Created candidate version %s (%s)", output.Cyan(v.Name), v.ID)
	if versionCopyFrom != "" {
		ui.Info("Copied %d pattern(s) and %d template(s)", v.PatternCount, v.TemplateCount)
	}
	return nil
}

func versionUpdateRun(cmd *cobra.Command, id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	cur, err := svc.versions.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	name, notes := cur.Name, cur.Notes
	if cmd.Flags().Changed("name") {
		name = versionName
	}
	if cmd.Flags().Changed("notes") {
		notes = versionNotes
	}
	v, err := svc.versions.UpdateVersion(ctx, id, name, notes)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(v)
	}
	ui.Success("Updated version %s", output.Cyan(v.Name))
	return nil
}

func versionPromoteRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	v, err := svc.versions.Promote(context.Background(), id)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(v)
	}
	ui.Success("Version %s is now %s", output.Cyan(v.Name), output.StatusColor(string(v.Status)))
	return nil
}

func versionArchiveRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if versionForce {
		err = svc.versions.ForceArchive(ctx, id)
	} else {
		err = svc.versions.Archive(ctx, id)
	}
	if err != nil {
		return err
	}
	ui.Success("Archived version %s", id)
	if versionForce {
		if _, err := svc.versions.ActiveVersion(ctx); err != nil {
			ui.Warning("No active version; promote a candidate to restore routing")
		}
	}
	return nil
}

func versionExportRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	data, err := svc.versions.ExportVersion(context.Background(), id)
	if err != nil {
		return err
	}
	if versionExportOut == "" {
		_, err = ui.Out.Write(data)
		return err
	}
	if err := os.WriteFile(versionExportOut, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	ui.Success("Exported version %s to %s", id, versionExportOut)
	return nil
}

func versionImportRun(path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	svc, err := getServices()
	if err != nil {
		return err
	}
	v, err := svc.versions.ImportVersion(context.Background(), data, versionImportName)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(v)
	}
	ui.Success("Imported candidate version %s (%s): %d pattern(s), %d template(s)",
		output.Cyan(v.Name), v.ID, v.PatternCount, v.TemplateCount)
	return nil
}

func versionDiffRun(fromID, toID string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	d, err := svc.versions.DiffVersions(context.Background(), fromID, toID)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(d)
	}
	if d.Empty() {
		ui.Info("No pattern differences")
		return nil
	}
	for _, p := range d.Added {
		fmt.Fprintf(ui.Out, "%s %s/%s [%s] %s\n", output.Green("+"), p.Handler, p.Intent, p.Kind, p.Expression)
	}
	for _, p := range d.Removed {
		fmt.Fprintf(ui.Out, "%s %s/%s [%s] %s\n", output.Red("-"), p.Handler, p.Intent, p.Kind, p.Expression)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(ui.Out, "%s %s/%s [%s] %s\n", output.Yellow("~"), c.To.Handler, c.To.Intent, c.To.Kind, c.To.Expression)
		if c.From.Priority != c.To.Priority {
			fmt.Fprintf(ui.Out, "    priority %d -> %d\n", c.From.Priority, c.To.Priority)
		}
		if c.From.Enabled != c.To.Enabled {
			fmt.Fprintf(ui.Out, "    enabled %t -> %t\n", c.From.Enabled, c.To.Enabled)
		}
		if c.From.Scope != c.To.Scope {
			fmt.Fprintf(ui.Out, "    scope %q -> %q\n", c.From.Scope, c.To.Scope)
		}
	}
	return nil
}

func versionHealthRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	v, err := svc.harness.ResolveVersion(ctx, id)
	if err != nil {
		return err
	}
	h, err := health.NewScorer(svc.versions, svc.workflow()).Assess(ctx, v.ID)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(h)
	}

	fmt.Fprintf(ui.Out, "Health of %s (%s): %s\n", output.Cyan(v.Name), v.ID, output.ScoreColor(h.Total, 100))
	table := ui.Table([]string{"Component", "Score"})
	rows := [][]string{
		{"Expression validity", fmt.Sprintf("%d/25", h.ExpressionValidity)},
		{"Template coverage", fmt.Sprintf("%d/20", h.TemplateCoverage)},
		{"Ambiguity", fmt.Sprintf("%d/20", h.Ambiguity)},
		{"Maintainability", fmt.Sprintf("%d/15", h.Maintainability)},
		{"Suggestion backlog", fmt.Sprintf("%d/20", h.SuggestionBacklog)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	for _, f := range h.Findings {
		ui.Warning("%s", f)
	}
	return nil
}
