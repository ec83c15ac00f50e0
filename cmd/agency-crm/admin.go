package main

import (
	"fmt"
	"log/slog"

	"agency-crm/config"
	"agency-crm/models"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Создать таблицы и справочник прав",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ConnectDB(settings); err != nil {
			return err
		}
		if err := config.Migrate(config.DB); err != nil {
			return err
		}
		slog.Info("Миграции выполнены")
		return nil
	},
}

var (
	userFullName string
	userPassword string
	userRoles    []string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user LOGIN",
	Short: "Создать пользователя",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ConnectDB(settings); err != nil {
			return err
		}
		user, err := models.CreateUser(config.DB, args[0], userFullName, userPassword, userRoles...)
		if err != nil {
			return fmt.Errorf("create user %q: %w", args[0], err)
		}
		slog.Info("Пользователь создан", "user_id", user.ID, "login", user.Login, "roles", userRoles)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&userFullName, "name", "", "ФИО")
	createUserCmd.Flags().StringVar(&userPassword, "password", "", "пароль, не короче 6 символов")
	createUserCmd.Flags().StringSliceVar(&userRoles, "role", []string{models.RoleAdmin}, "роли пользователя")
	_ = createUserCmd.MarkFlagRequired("password")
}
