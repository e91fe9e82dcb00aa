package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/intentcfg/internal/actions"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/output"
	"github.com/joescharf/intentcfg/internal/store"
	"github.com/joescharf/intentcfg/internal/suggestions"
)

var (
	actionSuggestion  string
	actionStatus      string
	actionAssignee    string
	actionDescription string
	actionPriority    string
	actionImplType    string
	actionDue         string
	actionNotes       string
)

var actionCmd = &cobra.Command{
	Use:     "action",
	Aliases: []string{"ai"},
	Short:   "Track action items of approved suggestions",
}

var actionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List action items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionListRun()
	},
}

var actionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an action item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionShowRun(args[0])
	},
}

var actionAddCmd = &cobra.Command{
	Use:   "add <suggestion-id> <title>",
	Short: "Add an action item under an approved suggestion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionAddRun(args[0], args[1])
	},
}

var actionStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move an action item to pending, in_progress, completed, or cancelled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actionStatusRun(cmd, args[0], args[1])
	},
}

func init() {
	actionListCmd.Flags().StringVar(&actionSuggestion, "suggestion", "", "Filter by suggestion id")
	actionListCmd.Flags().StringVar(&actionStatus, "status", "", "Filter by status")
	actionListCmd.Flags().StringVar(&actionAssignee, "assignee", "", "Filter by assignee")

	actionAddCmd.Flags().StringVarP(&actionDescription, "description", "d", "", "Description")
	actionAddCmd.Flags().StringVar(&actionPriority, "priority", "", "Priority (default: medium)")
	actionAddCmd.Flags().StringVar(&actionImplType, "type", "", "Implementation type: pattern, template, code_fix, documentation, other")
	actionAddCmd.Flags().StringVar(&actionAssignee, "assignee", "", "Assignee")
	actionAddCmd.Flags().StringVar(&actionDue, "due", "", "Due date (YYYY-MM-DD)")

	actionStatusCmd.Flags().StringVar(&actionNotes, "notes", "", "Completion notes (required for completed)")

	actionCmd.AddCommand(actionListCmd, actionShowCmd, actionAddCmd, actionStatusCmd)
	rootCmd.AddCommand(actionCmd)
}

func actionListRun() error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	items, err := svc.tracker().List(context.Background(), store.ActionItemListFilter{
		SuggestionID: actionSuggestion,
		Status:       models.ActionItemStatus(actionStatus),
		AssignedTo:   actionAssignee,
	})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(items)
	}
	if len(items) == 0 {
		ui.Info("No action items")
		return nil
	}
	return printActionItems(items)
}

func printActionItems(items []*models.ActionItem) error {
	table := ui.Table([]string{"ID", "Status", "Priority", "Type", "Assignee", "Due", "Title"})
	for _, it := range items {
		due := ""
		if it.DueDate != nil {
			due = it.DueDate.Format(time.DateOnly)
		}
		_ = table.Append([]string{
			it.ID,
			output.StatusColor(string(it.Status)),
			output.PriorityColor(string(it.Priority)),
			string(it.ImplementationType),
			it.AssignedTo,
			due,
			output.Truncate(it.Title, 50),
		})
	}
	return table.Render()
}

func actionShowRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	it, err := svc.tracker().Get(context.Background(), id)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(it)
	}
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(it.Title), output.StatusColor(string(it.Status)))
	fmt.Fprintf(ui.Out, "  ID:          %s\n", it.ID)
	fmt.Fprintf(ui.Out, "  Suggestion:  %s\n", it.SuggestionID)
	fmt.Fprintf(ui.Out, "  Priority:    %s\n", output.PriorityColor(string(it.Priority)))
	fmt.Fprintf(ui.Out, "  Type:        %s\n", it.ImplementationType)
	if it.AssignedTo != "" {
		fmt.Fprintf(ui.Out, "  Assignee:    %s\n", it.AssignedTo)
	}
	if it.Description != "" {
		fmt.Fprintf(ui.Out, "  Description: %s\n", it.Description)
	}
	if it.CompletionNotes != nil {
		fmt.Fprintf(ui.Out, "  Notes:       %s\n", *it.CompletionNotes)
	}
	fmt.Fprintf(ui.Out, "  Created by:  %s on %s\n", it.CreatedBy, it.CreatedAt.Local().Format(time.DateTime))
	return nil
}

func actionAddRun(suggestionID, title string) error {
	d := actions.Draft{
		Title:              title,
		Description:        actionDescription,
		Priority:           models.Priority(actionPriority),
		ImplementationType: models.ImplementationType(actionImplType),
		AssignedTo:         actionAssignee,
	}
	if actionDue != "" {
		due, err := time.Parse(time.DateOnly, actionDue)
		if err != nil {
			return fmt.Errorf("invalid --due %q: expected YYYY-MM-DD", actionDue)
		}
		d.DueDate = &due
	}

	svc, err := getServices()
	if err != nil {
		return err
	}
	res, err := svc.commands.Apply(context.Background(), suggestions.CreateActionItem{
		SuggestionID: suggestionID,
		Draft:        d,
		Actor:        actor(),
	})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(res.ActionItems[0])
	}
	ui.Success("Created action item %s", res.ActionItems[0].ID)
	return nil
}

func actionStatusRun(cmd *cobra.Command, id, status string) error {
	var notes *string
	if cmd.Flags().Changed("notes") {
		notes = &actionNotes
	}
	svc, err := getServices()
	if err != nil {
		return err
	}
	res, err := svc.commands.Apply(context.Background(), suggestions.SetActionItemStatus{
		ItemID:          id,
		Status:          models.ActionItemStatus(status),
		CompletionNotes: notes,
		Actor:           actor(),
	})
	if err != nil {
		return err
	}
	it := res.ActionItems[0]
	if ui.JSON {
		return ui.PrintJSON(it)
	}
	ui.Success("Action item %s is now %s", it.ID, output.StatusColor(string(it.Status)))
	if it.Status == models.ActionItemStatusCompleted {
		if ready, err := svc.tracker().IsSuggestionReadyToAddress(context.Background(), it.SuggestionID); err == nil && ready {
			ui.Info("Suggestion %s can now be marked addressed: intentcfg suggestion addressed %s", it.SuggestionID, it.SuggestionID)
		}
	}
	return nil
}
