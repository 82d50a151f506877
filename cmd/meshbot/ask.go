package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/core"
)

func newAskCmd(configPath *string) *cobra.Command {
	var user, topic string

	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Dispatch one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, *configPath, user, topic, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&user, "user", "console", "user id of the conversation")
	cmd.Flags().StringVar(&topic, "topic", core.MainTopic, "topic of the conversation")
	return cmd
}

func runAsk(cmd *cobra.Command, configPath, user, topic, text string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	bot, err := newBot(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bot.Shutdown(cmd.Context()) }()

	reply, err := bot.Ask(cmd.Context(), user, topic, text)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
