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
	sugStatus          string
	sugType            string
	sugPriority        string
	sugHandler         string
	sugIntent          string
	sugDescription     string
	sugMessageRef      string
	sugProposedPattern string
	sugDecision        string
	sugAnalysis        string
	sugImplNotes       string
	sugItems           []string
	sugCompletionNotes string
)

var suggestionCmd = &cobra.Command{
	Use:     "suggestion",
	Aliases: []string{"sug"},
	Short:   "Report and review improvement suggestions",
}

var suggestionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List suggestions, most urgent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionListRun()
	},
}

var suggestionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a suggestion with its action items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionShowRun(args[0])
	},
}

var suggestionCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Report a suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionCreateRun(args[0])
	},
}

var suggestionReviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Approve, reject, or request analysis on a suggestion",
	Long: `Record a review decision. Approving requires --analysis.
Action items can be created together with an approval using --item.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionReviewRun(args[0])
	},
}

var suggestionReopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Return a needs_analysis suggestion to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionApply(suggestions.ReopenSuggestion{SuggestionID: args[0], Actor: actor()}, "Reopened")
	},
}

var suggestionAddressedCmd = &cobra.Command{
	Use:   "addressed <id>",
	Short: "Mark an approved suggestion implemented (needs a completed action item)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionApply(suggestions.MarkSuggestionAddressed{
			SuggestionID:    args[0],
			CompletionNotes: sugCompletionNotes,
			Actor:           actor(),
		}, "Implemented")
	},
}

var suggestionSimilarCmd = &cobra.Command{
	Use:   "similar <query>",
	Short: "Find open suggestions with similar titles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return suggestionSimilarRun(args[0])
	},
}

func init() {
	suggestionListCmd.Flags().StringVar(&sugStatus, "status", "", "Filter by status")
	suggestionListCmd.Flags().StringVar(&sugType, "type", "", "Filter by type")
	suggestionListCmd.Flags().StringVar(&sugPriority, "priority", "", "Filter by priority")
	suggestionListCmd.Flags().StringVar(&sugHandler, "handler", "", "Filter by target handler")

	suggestionCreateCmd.Flags().StringVar(&sugType, "type", string(models.SuggestionTypePattern), "Type: pattern, template, intent_mapping, handler_improvement")
	suggestionCreateCmd.Flags().StringVar(&sugPriority, "priority", string(models.PriorityMedium), "Priority: low, medium, high, critical")
	suggestionCreateCmd.Flags().StringVarP(&sugDescription, "description", "d", "", "Description")
	suggestionCreateCmd.Flags().StringVar(&sugHandler, "handler", "", "Target handler")
	suggestionCreateCmd.Flags().StringVar(&sugIntent, "intent", "", "Target intent")
	suggestionCreateCmd.Flags().StringVar(&sugMessageRef, "message-ref", "", "Reference to the triggering message")
	suggestionCreateCmd.Flags().StringVar(&sugProposedPattern, "proposed-pattern", "", "Proposed expression")

	suggestionReviewCmd.Flags().StringVar(&sugDecision, "decision", "", "approved, rejected, needs_analysis")
	suggestionReviewCmd.Flags().StringVar(&sugAnalysis, "analysis", "", "Admin analysis (required to approve)")
	suggestionReviewCmd.Flags().StringVar(&sugImplNotes, "notes", "", "Implementation notes")
	suggestionReviewCmd.Flags().StringArrayVar(&sugItems, "item", nil, "Action item title to create with an approval (repeatable)")
	_ = suggestionReviewCmd.MarkFlagRequired("decision")

	suggestionAddressedCmd.Flags().StringVar(&sugCompletionNotes, "notes", "", "Completion notes")

	suggestionCmd.AddCommand(suggestionListCmd, suggestionShowCmd, suggestionCreateCmd, suggestionReviewCmd,
		suggestionReopenCmd, suggestionAddressedCmd, suggestionSimilarCmd)
	rootCmd.AddCommand(suggestionCmd)
}

func suggestionListRun() error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	list, err := svc.workflow().List(context.Background(), store.SuggestionListFilter{
		Status:   models.SuggestionStatus(sugStatus),
		Type:     models.SuggestionType(sugType),
		Priority: models.Priority(sugPriority),
		Handler:  sugHandler,
	})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(list)
	}
	if len(list) == 0 {
		ui.Info("No suggestions")
		return nil
	}
	table := ui.Table([]string{"ID", "Priority", "Status", "Type", "Handler", "Title", "Reported"})
	for _, s := range list {
		_ = table.Append([]string{
			s.ID,
			output.PriorityColor(string(s.Priority)),
			output.StatusColor(string(s.Status)),
			string(s.Type),
			s.TargetHandler,
			output.Truncate(s.Title, 50),
			s.CreatedAt.Local().Format(time.DateOnly),
		})
	}
	return table.Render()
}

func suggestionShowRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, err := svc.workflow().Get(ctx, id)
	if err != nil {
		return err
	}
	items, err := svc.tracker().List(ctx, store.ActionItemListFilter{SuggestionID: id})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(suggestions.Result{Suggestion: s, ActionItems: items})
	}

	fmt.Fprintf(ui.Out, "%s  %s  %s\n", output.Cyan(s.Title), output.StatusColor(string(s.Status)), output.PriorityColor(string(s.Priority)))
	fmt.Fprintf(ui.Out, "  ID:          %s\n", s.ID)
	fmt.Fprintf(ui.Out, "  Type:        %s\n", s.Type)
	fmt.Fprintf(ui.Out, "  Reported by: %s on %s\n", s.ReportedBy, s.CreatedAt.Local().Format(time.DateTime))
	if s.TargetHandler != "" || s.TargetIntent != "" {
		fmt.Fprintf(ui.Out, "  Target:      %s/%s\n", s.TargetHandler, s.TargetIntent)
	}
	if s.Description != "" {
		fmt.Fprintf(ui.Out, "  Description: %s\n", s.Description)
	}
	if s.ProposedPattern != "" {
		fmt.Fprintf(ui.Out, "  Proposed:    %s\n", s.ProposedPattern)
	}
	if s.ReviewedBy != "" {
		fmt.Fprintf(ui.Out, "  Reviewed by: %s\n", s.ReviewedBy)
	}
	if s.AdminAnalysis != "" {
		fmt.Fprintf(ui.Out, "  Analysis:    %s\n", s.AdminAnalysis)
	}
	if s.CompletionNotes != "" {
		fmt.Fprintf(ui.Out, "  Completion:  %s\n", s.CompletionNotes)
	}
	if len(items) > 0 {
		fmt.Fprintln(ui.Out)
		printActionItems(items)
	}
	return nil
}

func suggestionCreateRun(title string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Warn about likely duplicates before recording.
	if matches, err := svc.workflow().Similar(ctx, title); err == nil && len(matches) > 0 && !ui.JSON {
		ui.Warning("Similar open suggestion(s):")
		for i, m := range matches {
			if i == 3 {
				break
			}
			ui.Warning("  %s  %s (%s)", m.Suggestion.ID, m.Suggestion.Title, m.Suggestion.Status)
		}
	}

	res, err := svc.commands.Apply(ctx, suggestions.CreateSuggestion{
		Input: suggestions.NewSuggestion{
			Title:           title,
			Type:            models.SuggestionType(sugType),
			Priority:        models.Priority(sugPriority),
			Description:     sugDescription,
			TargetHandler:   sugHandler,
			TargetIntent:    sugIntent,
			MessageRef:      sugMessageRef,
			ProposedPattern: sugProposedPattern,
		},
		Reporter: actor(),
	})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(res.Suggestion)
	}
	ui.Success("Created suggestion %s", res.Suggestion.ID)
	return nil
}

func suggestionReviewRun(id string) error {
	drafts := make([]actions.Draft, 0, len(sugItems))
	for _, title := range sugItems {
		drafts = append(drafts, actions.Draft{Title: title})
	}
	return suggestionApply(suggestions.ReviewSuggestion{Input: suggestions.ReviewInput{
		SuggestionID:        id,
		Decision:            models.SuggestionStatus(sugDecision),
		AdminAnalysis:       sugAnalysis,
		ImplementationNotes: sugImplNotes,
		Reviewer:            actor(),
		ActionItems:         drafts,
	}}, "Reviewed")
}

// suggestionApply runs a command and reports the resulting suggestion state.
func suggestionApply(c suggestions.Command, verb string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	res, err := svc.commands.Apply(context.Background(), c)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(res)
	}
	ui.Success("%s suggestion %s: %s", verb, res.Suggestion.ID, output.StatusColor(string(res.Suggestion.Status)))
	for _, item := range res.ActionItems {
		ui.Info("Created action item %s: %s", item.ID, item.Title)
	}
	return nil
}

func suggestionSimilarRun(query string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	matches, err := svc.workflow().Similar(context.Background(), query)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(matches)
	}
	if len(matches) == 0 {
		ui.Info("No similar open suggestions")
		return nil
	}
	table := ui.Table([]string{"ID", "Score", "Status", "Title"})
	for _, m := range matches {
		_ = table.Append([]string{m.Suggestion.ID, fmt.Sprint(m.Score), output.StatusColor(string(m.Suggestion.Status)), m.Suggestion.Title})
	}
	return table.Render()
}
