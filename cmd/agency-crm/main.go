package main

import (
	"fmt"
	"os"

	"agency-crm/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	settings   *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "agency-crm",
	Short: "Сервис задач агентства с учетом предоплат, платежей и кредитов клиентов",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.LoadSettings(configPath)
		if err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
		s.Apply()
		settings = s
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к YAML-конфигурации (по умолчанию CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd, createUserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
