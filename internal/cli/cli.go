// Package cli ethioctl 子命令：migrate / create-admin / worker / version
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ethio-home/internal/app"
	"ethio-home/internal/core/config"
	"ethio-home/internal/core/logger"
	"ethio-home/internal/core/mq"
	"ethio-home/internal/service"
)

// Version 构建时 -ldflags "-X ethio-home/internal/cli.Version=..." 注入
var Version = "dev"

type loader func() (*config.Config, error)

func NewRoot() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "ethioctl",
		Short:         "Ethio-Home operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")
	load := func() (*config.Config, error) { return config.Load(cfgPath) }

	root.AddCommand(
		MigrateCmd(load),
		CreateAdminCmd(load),
		WorkerCmd(load),
		VersionCmd(),
	)
	return root
}

func MigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			l, cleanup := logger.New(logger.FromConfig(cfg.Log))
			defer cleanup()
			db, err := app.OpenDB(cfg, l)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer closeDB(db)
			if err := app.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}

func CreateAdminCmd(load loader) *cobra.Command {
	var in service.StaffInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified admin or employee account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			l, cleanup := logger.New(logger.FromConfig(cfg.Log))
			defer cleanup()
			db, err := app.OpenDB(cfg, l)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer closeDB(db)

			a := app.Assemble(cfg, l, app.Infra{DB: db})
			defer a.Close()
			u, err := a.UserSvc.CreateStaff(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password (min 8 characters)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (defaults to the email local part)")
	cmd.Flags().StringVar(&in.Role, "role", "admin", "admin or employee")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// WorkerCmd 消费领域事件并发送通知邮件
func WorkerCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume domain events from RabbitMQ and send notification emails",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.MQ.Enabled {
				return errors.New("mq.enabled is false: events are delivered in-process by the api")
			}
			l, cleanup := logger.New(logger.FromConfig(cfg.Log))
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := app.OpenDB(cfg, l)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer closeDB(db)
			// 只消费不发布：Events 给一个 Nop，避免 Assemble 回落到进程内投递
			a := app.Assemble(cfg, l, app.Infra{DB: db, Events: mq.Nop{Log: l}})

			c := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.Queue, service.NotifyKeys, l)
			l.Info("worker started", zap.String("queue", cfg.MQ.Queue), zap.Strings("keys", service.NotifyKeys))
			err = c.Run(ctx, a.Notifier.Handle)
			if errors.Is(err, context.Canceled) {
				l.Info("worker stopped")
				return nil
			}
			return err
		},
	}
}

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ethioctl %s\n", Version)
		},
	}
}
