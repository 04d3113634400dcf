package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crisis-chat/backend/internal/crisis"
	"crisis-chat/backend/internal/escalation"
	"crisis-chat/backend/internal/models"
)

func levelColor(level models.CrisisLevel) *color.Color {
	switch level {
	case models.CrisisCritical:
		return color.New(color.FgRed, color.Bold)
	case models.CrisisHigh:
		return color.New(color.FgRed)
	case models.CrisisMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func newClassifyCmd() *cobra.Command {
	var highForcesEmergency bool

	cmd := &cobra.Command{
		Use:   "classify <text>...",
		Short: "Classify text the way the ingestion pipeline does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := crisis.NewDefault().Assess(strings.Join(args, " "))
			printAssessment(cmd.OutOrStdout(), a, escalation.PolicyFromFlag(highForcesEmergency))
			return nil
		},
	}
	cmd.Flags().BoolVar(&highForcesEmergency, "high-forces-emergency", false, "treat high like critical when deciding the session status")
	return cmd
}

func printAssessment(w io.Writer, a crisis.Assessment, policy escalation.StatusPolicy) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold("level:"), levelColor(a.Level).Sprint(a.Level))
	if a.Matched() {
		fmt.Fprintf(w, "%s %q (confidence %.2f)\n", bold("phrase:"), a.Phrase, a.Confidence)
	}
	fmt.Fprintf(w, "%s %d\n", bold("priority:"), a.Level.Priority())

	if !escalation.Escalates(a.Level) {
		fmt.Fprintf(w, "%s no\n", bold("escalates:"))
		return
	}
	ch := escalation.ChannelsFor(a.Level)
	fmt.Fprintf(w, "%s yes (police=%t ambulance=%t crisisTeam=%t)\n", bold("escalates:"), ch.Police, ch.Ambulance, ch.CrisisTeam)
	fmt.Fprintf(w, "%s %t\n", bold("emergency:"), policy.ForcesEmergency(a.Level))
}

func newLexiconCmd() *cobra.Command {
	var minLevel string

	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "List the crisis phrases and their levels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			floor := models.CrisisLow
			if minLevel != "" {
				level, err := models.ParseCrisisLevel(minLevel)
				if err != nil {
					return err
				}
				floor = level
			}

			w := cmd.OutOrStdout()
			for _, e := range crisis.NewDefault().Entries() {
				if !e.Level.AtLeast(floor) {
					continue
				}
				fmt.Fprintf(w, "%-9s %.2f  %s\n", levelColor(e.Level).Sprint(e.Level), e.Confidence, e.Phrase)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&minLevel, "min-level", "", "only show entries at or above this level")
	return cmd
}
