package cmd

import (
	"github.com/spf13/cobra"

	"github.com/anirudhms/vani/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize vani configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure vani and generates a .vani.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
