package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crisis-chat/backend/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crisisctl",
		Short:         "Operator tools for the crisis chat engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newClassifyCmd(),
		newLexiconCmd(),
		newTokenCmd(config.Get),
		newTailCmd(config.Get),
		newChatCmd(),
	)
	return root
}
