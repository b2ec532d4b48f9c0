package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tela/pkg/telakit"
)

// rootOptions общие флаги всех команд клиента.
type rootOptions struct {
	host    string
	port    int
	timeout time.Duration
	verbose bool
}

func (o rootOptions) address() string {
	return net.JoinHostPort(o.host, strconv.Itoa(o.port))
}

func (o rootOptions) connect(ctx context.Context) (*telakit.Client, error) {
	client := telakit.NewClient(telakit.ClientConfig{
		ConnectTimeout: o.timeout,
		Logger:         telakit.NewSlogLogger(newLogger(o.verbose)),
	})
	if err := client.Connect(ctx, o.address()); err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", o.address(), err)
	}
	return client, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	shellOpts := &shellOptions{}

	cmd := &cobra.Command{
		Use:   "graficos",
		Short: "Client for the Tela drawing server",
		Long: `graficos connects to a Tela server and sends drawing commands.

Without a subcommand it starts the interactive shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts, shellOpts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.host, "host", telakit.DefaultHost, "Tela server host")
	pf.IntVar(&opts.port, "port", telakit.DefaultPort, "Tela server port")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Connect timeout")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log client events to stderr")

	cmd.Flags().StringVar(&shellOpts.readFrom, "read-from", "", "Replay commands from this file before starting the shell")

	cmd.AddCommand(
		shellCmd(opts),
		sendCmd(opts),
		replayCmd(opts),
	)
	return cmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func shellCmd(opts *rootOptions) *cobra.Command {
	shellOpts := &shellOptions{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive drawing shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts, shellOpts)
		},
	}
	cmd.Flags().StringVar(&shellOpts.readFrom, "read-from", "", "Replay commands from this file before starting the shell")
	return cmd
}

func sendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send LINE...",
		Short: "Send raw protocol lines, e.g. graficos send 'CO 0,255,0' 'PO 3,4'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			for _, line := range args {
				if err := client.SendLine([]byte(line)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func replayCmd(opts *rootOptions) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Send every command from FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			var sent int
			if follow {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				sent, err = client.Follow(ctx, args[0])
			} else {
				sent, err = client.ReplayFile(args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d commands sent\n", sent)
			return err
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep sending lines appended to FILE until interrupted")
	return cmd
}
