package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "brovakt",
	Short: "canal bridge watch: tracks vessels and narrates bridge status",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
}
