package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "flatpress",
		Short:         "A flat-file blog publishing engine built with Go, Echo, and templ",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newNewCmd(),
		newReindexCmd(),
		newBackupCmd(),
		newBackupsCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the flatpress version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flatpress %s\n", version)
		},
	}
}
