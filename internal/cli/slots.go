package cli

import (
	"fmt"

	"github.com/MajordomoAI/majordomo/internal/calendar"
	"github.com/spf13/cobra"
)

var slotsDuration int

var slotsCmd = &cobra.Command{
	Use:   "slots [date]",
	Short: "Suggest free meeting slots for a day (YYYY-MM-DD, default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		anchor := ""
		if len(args) == 1 {
			anchor = args[0]
		}
		opts := calendar.DefaultAvailabilityOptions()
		opts.DurationMinutes = slotsDuration
		if rt.cfg.Calendar.WorkingHoursStart != "" {
			opts.WorkingHoursStart = rt.cfg.Calendar.WorkingHoursStart
		}
		if rt.cfg.Calendar.WorkingHoursEnd != "" {
			opts.WorkingHoursEnd = rt.cfg.Calendar.WorkingHoursEnd
		}

		slots, err := rt.calendar.Availability(cmd.Context(), anchor, opts)
		if err != nil {
			return err
		}
		printHeader("🗓️ Suggested Slots")
		if len(slots) == 0 {
			fmt.Println("No free slots in the working window.")
			return nil
		}
		for _, slot := range slots {
			fmt.Printf("%s–%s  score %.3f  %s\n",
				slot.Start.Format("15:04"), slot.End.Format("15:04"), slot.Score, slot.Reason)
		}
		return nil
	},
}

func init() {
	slotsCmd.Flags().IntVar(&slotsDuration, "duration", 30, "meeting length in minutes")
}
