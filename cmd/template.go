package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/output"
	"github.com/joescharf/intentcfg/internal/store"
)

var (
	templateVersion  string
	templateHandler  string
	templateIntent   string
	templateType     string
	templateBody     string
	templateBodyFile string
	templateDisabled bool
	templateVars     []string
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage prompt templates within a version",
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates (default: active version)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateListRun()
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateShowRun(args[0])
	},
}

var templateAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a template to a version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateAddRun()
	},
}

var templateUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateUpdateRun(cmd, args[0])
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateDeleteRun(args[0])
	},
}

var templateRenderCmd = &cobra.Command{
	Use:   "render <id>",
	Short: "Render a template with --var name=value substitutions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateRenderRun(args[0])
	},
}

func init() {
	templateListCmd.Flags().StringVar(&templateVersion, "version-id", "", "Version id (default: active version)")
	templateListCmd.Flags().StringVar(&templateHandler, "handler", "", "Filter by handler")
	templateListCmd.Flags().StringVar(&templateType, "type", "", "Filter by type")

	templateAddCmd.Flags().StringVar(&templateVersion, "version-id", "", "Version id")
	for _, c := range []*cobra.Command{templateAddCmd, templateUpdateCmd} {
		c.Flags().StringVar(&templateHandler, "handler", "", "Handler name")
		c.Flags().StringVar(&templateIntent, "intent", "", "Intent name (empty: all intents of the handler)")
		c.Flags().StringVar(&templateType, "type", string(models.TemplateTypeSystem), "Type: system, user, fallback_context")
		c.Flags().StringVar(&templateBody, "body", "", "Template body")
		c.Flags().StringVar(&templateBodyFile, "body-file", "", "Read the body from a file")
		c.Flags().BoolVar(&templateDisabled, "disabled", false, "Disable the template")
	}
	_ = templateAddCmd.MarkFlagRequired("version-id")
	_ = templateAddCmd.MarkFlagRequired("handler")

	templateRenderCmd.Flags().StringArrayVar(&templateVars, "var", nil, "Placeholder value as name=value (repeatable)")

	templateCmd.AddCommand(templateListCmd, templateShowCmd, templateAddCmd, templateUpdateCmd,
		templateDeleteCmd, templateRenderCmd)
	rootCmd.AddCommand(templateCmd)
}

func templateBodyFromFlags() (string, error) {
	if templateBodyFile == "" {
		return templateBody, nil
	}
	data, err := os.ReadFile(templateBodyFile)
	if err != nil {
		return "", fmt.Errorf("read body file: %w", err)
	}
	return string(data), nil
}

func templateListRun() error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	v, err := svc.harness.ResolveVersion(ctx, templateVersion)
	if err != nil {
		return err
	}
	templates, err := svc.versions.ListTemplates(ctx, store.TemplateListFilter{
		VersionID: v.ID,
		Handler:   templateHandler,
		Type:      models.TemplateType(templateType),
	})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(templates)
	}
	ui.Info("Version %s (%s)", output.Cyan(v.Name), output.StatusColor(string(v.Status)))
	if len(templates) == 0 {
		ui.Info("No templates")
		return nil
	}
	table := ui.Table([]string{"ID", "Handler", "Intent", "Type", "Enabled", "Placeholders"})
	for _, t := range templates {
		_ = table.Append([]string{
			t.ID, t.Handler, t.Intent, string(t.Type), fmt.Sprint(t.Enabled), strings.Join(t.Placeholders(), ", "),
		})
	}
	return table.Render()
}

func templateShowRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	t, err := svc.versions.GetTemplate(context.Background(), id)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(t)
	}
	fmt.Fprintf(ui.Out, "%s/%s  [%s]\n", output.Cyan(t.Handler), t.Intent, t.Type)
	fmt.Fprintf(ui.Out, "  ID:       %s\n", t.ID)
	fmt.Fprintf(ui.Out, "  Version:  %s\n", t.VersionID)
	fmt.Fprintf(ui.Out, "  Enabled:  %t\n", t.Enabled)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, t.Body)
	return nil
}

func templateAddRun() error {
	body, err := templateBodyFromFlags()
	if err != nil {
		return err
	}
	svc, err := getServices()
	if err != nil {
		return err
	}
	t := &models.Template{
		VersionID: templateVersion,
		Handler:   templateHandler,
		Intent:    templateIntent,
		Type:      models.TemplateType(templateType),
		Body:      body,
		Enabled:   !templateDisabled,
	}
	if err := svc.versions.AddTemplate(context.Background(), t); err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(t)
	}
	ui.Success("Added template %s", t.ID)
	return nil
}

func templateUpdateRun(cmd *cobra.Command, id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	t, err := svc.versions.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("handler") {
		t.Handler = templateHandler
	}
	if f.Changed("intent") {
		t.Intent = templateIntent
	}
	if f.Changed("type") {
		t.Type = models.TemplateType(templateType)
	}
	if f.Changed("body") || f.Changed("body-file") {
		body, err := templateBodyFromFlags()
		if err != nil {
			return err
		}
		t.Body = body
	}
	if f.Changed("disabled") {
		t.Enabled = !templateDisabled
	}
	if err := svc.versions.UpdateTemplate(ctx, t); err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(t)
	}
	ui.Success("Updated template %s", t.ID)
	return nil
}

func templateDeleteRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	if err := svc.versions.DeleteTemplate(context.Background(), id); err != nil {
		return err
	}
	ui.Success("Deleted template %s", id)
	return nil
}

func templateRenderRun(id string) error {
	vars, err := parseVars(templateVars)
	if err != nil {
		return err
	}
	svc, err := getServices()
	if err != nil {
		return err
	}
	t, err := svc.versions.GetTemplate(context.Background(), id)
	if err != nil {
		return err
	}
	out, err := t.Render(vars)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, out)
	return nil
}

// parseVars turns name=value pairs into a map.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", kv)
		}
		vars[strings.TrimSpace(name)] = value
	}
	return vars, nil
}
