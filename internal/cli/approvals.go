package cli

import (
	"fmt"

	"github.com/MajordomoAI/majordomo/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var approvalsStatus string

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect and resolve pending approval actions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		actions, err := rt.store.ListApprovalActions(approvalsStatus, 50)
		if err != nil {
			return err
		}
		printHeader("🔏 Approval Actions")
		if len(actions) == 0 {
			fmt.Println("No actions found.")
			return nil
		}
		for _, a := range actions {
			fmt.Printf("%s  %-10s %-22s %s\n",
				a.ActionID, statusLabel(a.Status), a.ActionType, a.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var approvalsShowCmd = &cobra.Command{
	Use:   "show <action-id>",
	Short: "Show one action with its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		a, err := rt.ledger.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Action:  %s\n", a.ActionID)
		fmt.Printf("Type:    %s (%s)\n", a.ActionType, a.TargetType)
		fmt.Printf("Status:  %s\n", statusLabel(a.Status))
		if a.ApprovedBy != "" {
			fmt.Printf("Approved by: %s\n", a.ApprovedBy)
		}
		if a.ErrorText != "" {
			fmt.Printf("Error:   %s\n", a.ErrorText)
		}
		fmt.Printf("Payload: %s\n", a.Payload)

		rows, err := rt.store.ListApprovalTransitions(a.ActionID)
		if err != nil {
			return err
		}
		fmt.Println("\nAudit trail:")
		for _, tr := range rows {
			from := tr.FromStatus
			if from == "" {
				from = "(new)"
			}
			fmt.Printf("  %s  %s -> %s", tr.CreatedAt.Format("2006-01-02 15:04:05"), from, tr.ToStatus)
			if tr.Actor != "" {
				fmt.Printf("  by %s", tr.Actor)
			}
			if tr.Note != "" {
				fmt.Printf("  (%s)", tr.Note)
			}
			fmt.Println()
		}
		return nil
	},
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <action-id>",
	Short: "Approve a prepared action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		a, err := rt.ledger.Transition(args[0], store.ActionStatusApproved, localUser(), "")
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s approved. Run 'majordomo approvals execute %s' to carry it out.\n", a.ActionID, a.ActionID)
		return nil
	},
}

var approvalsCancelCmd = &cobra.Command{
	Use:   "cancel <action-id>",
	Short: "Cancel an action before it executes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		a, err := rt.ledger.Transition(args[0], store.ActionStatusCancelled, localUser(), "")
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s cancelled.\n", a.ActionID)
		return nil
	},
}

var approvalsReaffirmCmd = &cobra.Command{
	Use:   "reaffirm <action-id>",
	Short: "Refresh a stale approval so it can execute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		a, err := rt.ledger.Reaffirm(args[0], localUser())
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s reaffirmed at %s.\n", a.ActionID, a.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var approvalsExecuteCmd = &cobra.Command{
	Use:   "execute <action-id>",
	Short: "Execute an approved action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		res, err := rt.gate.Execute(cmd.Context(), args[0], localUser())
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s executed.\n", res.Action.ActionID)
		if res.Draft != nil {
			fmt.Printf("Sent email %s to %v.\n", res.Draft.ID, res.Draft.To)
		}
		if res.Event != nil {
			fmt.Printf("Created event %s (%s).\n", res.Event.ID, res.Event.Title)
		}
		return nil
	},
}

func statusLabel(status string) string {
	switch status {
	case store.ActionStatusPrepared:
		return color.YellowString(status)
	case store.ActionStatusApproved:
		return color.CyanString(status)
	case store.ActionStatusExecuted:
		return color.GreenString(status)
	default:
		return color.RedString(status)
	}
}

func init() {
	approvalsListCmd.Flags().StringVar(&approvalsStatus, "status", "", "filter by status (prepared, approved, executed, failed, cancelled)")
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsShowCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsCancelCmd)
	approvalsCmd.AddCommand(approvalsReaffirmCmd)
	approvalsCmd.AddCommand(approvalsExecuteCmd)
}
