package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/certsplit/internal/services"
)

var organizeCmd = &cobra.Command{
	Use:   "organize <dir>",
	Short: "Group named certificates in a directory into per-tag folders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig()
		if err != nil {
			return err
		}
		summary, err := services.NewOutputOrganizer(logger).GroupByTag(args[0])
		if err != nil {
			return err
		}
		color.Green("Moved %d files, skipped %d without a tag.", summary.Moved, summary.Skipped)
		for _, e := range summary.Errors {
			color.Red("  %v", e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(organizeCmd)
}
