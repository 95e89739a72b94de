package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetguard/internal/checklist"
)

var (
	checklistPath   string
	checklistLocale string
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Validate a checklist definition and print its items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cl, err := checklist.Load(checklistPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "version %s  sha256 %s\n", cl.Version, cl.SHA256)
		for i, it := range cl.Items {
			fmt.Fprintf(out, "%2d. %-16s photos=%d  %s\n", i+1, it.ID, it.RequiredPhotos, it.Label(checklistLocale))
		}
		return nil
	},
}

func init() {
	checklistCmd.Flags().StringVar(&checklistPath, "path", "", "Checklist YAML file (embedded default when empty)")
	checklistCmd.Flags().StringVar(&checklistLocale, "locale", checklist.LocaleEN, "Locale for item names")
	rootCmd.AddCommand(checklistCmd)
}
