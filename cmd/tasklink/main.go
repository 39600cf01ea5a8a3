package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "tasklink",
		Short: "tasklink - keeps Craft and Motion tasks in sync",
		Long: `tasklink reconciles projects and tasks between a Craft space and a
Motion workspace. It links counterparts by title, creates what is missing
on either side and resolves conflicting edits, on a schedule or on demand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
