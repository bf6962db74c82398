package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/germanamz/chatbox/pkg/hostlink"
	"github.com/germanamz/chatbox/pkg/simhost"
)

// newHostCmd runs the canned-response host over the websocket link, for
// trying a chatbox started with host kind "websocket".
func newHostCmd() *cobra.Command {
	var (
		url   string
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Connect to a chatbox as a remote host and answer with canned replies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			c, err := hostlink.Dial(ctx, url)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", url)

			sim := simhost.New(simhost.WithDelay(delay))
			return c.Serve(ctx, sim.Send)
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:7331/chat", "chatbox host link endpoint")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "delay before each reply")

	return cmd
}
