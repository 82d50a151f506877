package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/transport/telegram"
)

func newInstallWebhookCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "install-webhook",
		Short: "Register the webhook URL with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstallWebhook(cmd, *configPath)
		},
	}
}

func runInstallWebhook(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	wh := telegram.NewWebhook(newTelegramClient(cfg, logger), nil, func(o *telegram.WebhookOptions) {
		o.Secret = cfg.Telegram.WebhookSecret
		o.Path = cfg.Telegram.WebhookPath
		o.PublicBaseURL = cfg.Telegram.PublicBaseURL
	})

	if err := wh.Install(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Webhook set to %s\n", wh.WebhookURL())
	return nil
}
