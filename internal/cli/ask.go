package cli

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/MajordomoAI/majordomo/internal/orchestrator"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var askDeep bool

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Run one request through the assistant pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		mode := orchestrator.ModeQuick
		if askDeep {
			mode = orchestrator.ModeDeep
		}
		req := orchestrator.Request{
			Mode:     mode,
			Channel:  "cli",
			Messages: []orchestrator.Message{{Role: "user", Content: strings.Join(args, " ")}},
		}

		resp, err := rt.engine.Run(cmd.Context(), req, localUser())
		if err != nil {
			return err
		}
		printResponse(resp)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askDeep, "deep", false, "use the model-backed planner")
}

func printResponse(resp *orchestrator.Response) {
	fmt.Println(resp.MessageText)
	for _, card := range resp.Cards {
		fmt.Println()
		fmt.Println(color.YellowString("[%s] %s", card.Kind, card.Title))
		if card.Body != "" {
			fmt.Println(card.Body)
		}
		if card.ActionID != "" {
			fmt.Println("Action: " + card.ActionID)
		}
	}
	if len(resp.QuickActions) > 0 {
		fmt.Println()
		for _, qa := range resp.QuickActions {
			fmt.Printf("  %s: majordomo approvals %s\n", qa.Label, strings.ReplaceAll(qa.Command, ":", " "))
		}
	}
	fmt.Println()
	fmt.Println(color.HiBlackString("run %s  verdict %s", resp.RunID, resp.Decision.Status))
}

// localUser identifies the requesting actor for audit rows.
func localUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}
