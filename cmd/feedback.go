package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	feedbackAccurate bool
	feedbackNotes    string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <topic>",
	Short: "Submit a human verdict on a prior research run",
	Long: "Applies a human verdict to the pending self-assessment of a research run, " +
		"recalibrating the reliability of every source the run used. Sessions live in " +
		"process memory, so this works against runs made in the same process (the serve " +
		"command exposes the same operation over HTTP for long-lived deployments).",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAgent(ctx, "research")
		if err != nil {
			return err
		}
		defer env.Close()

		topic := strings.Join(args, " ")
		if !env.Orchestrator.SubmitFeedback(ctx, topic, feedbackAccurate, feedbackNotes) {
			return eris.Errorf("no pending assessment for topic %q", topic)
		}

		cmd.Printf("feedback recorded for %q (accurate=%t)\n", topic, feedbackAccurate)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackAccurate, "accurate", false, "the research result was accurate")
	feedbackCmd.Flags().StringVar(&feedbackNotes, "notes", "", "free-form notes stored with the verdict")
	rootCmd.AddCommand(feedbackCmd)
}
