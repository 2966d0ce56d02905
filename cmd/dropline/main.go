package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/dropline/internal/util"
	"github.com/rescp17/dropline/pkg/discovery"
	receiverApp "github.com/rescp17/dropline/pkg/receiver"
	senderApp "github.com/rescp17/dropline/pkg/sender"
	"github.com/rescp17/dropline/pkg/transfer"
	"github.com/rescp17/dropline/pkg/ui"
	webrtcPkg "github.com/rescp17/dropline/pkg/webrtc"
)

type options struct {
	logFile  string
	debug    bool
	plain    bool
	lanOnly  bool
	transfer *transfer.TransferConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := fang.Execute(ctx, newRootCmd()); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{transfer: transfer.DefaultTransferConfig()}

	cmd := &cobra.Command{
		Use:   "dropline",
		Short: "Send a single file to a peer on your network",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.transfer.Validate(); err != nil {
				return fmt.Errorf("invalid transfer settings: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logFile, "log-file", "dropline.log", "Log file used while the TUI owns the terminal")
	flags.BoolVar(&opts.debug, "debug", false, "Log at debug level")
	flags.BoolVar(&opts.plain, "plain", false, "Print progress lines instead of running the TUI")
	flags.BoolVar(&opts.lanOnly, "lan-only", false, "Skip the public STUN server")
	flags.IntVar(&opts.transfer.ChunkSize, "chunk-size", opts.transfer.ChunkSize, "Payload bytes per data frame")
	flags.Uint64Var(&opts.transfer.HighWaterMark, "high-water-mark", opts.transfer.HighWaterMark, "Outbound backlog in bytes that pauses sending")
	flags.DurationVar(&opts.transfer.BackpressureRetry, "backpressure-retry", opts.transfer.BackpressureRetry, "Wait before re-checking a full channel")
	flags.DurationVar(&opts.transfer.StartDelay, "start-delay", opts.transfer.StartDelay, "Pause between the start message and the first chunk")
	flags.DurationVar(&opts.transfer.HeartbeatInterval, "heartbeat", opts.transfer.HeartbeatInterval, "Heartbeat interval")
	flags.DurationVar(&opts.transfer.ConnectTimeout, "connect-timeout", opts.transfer.ConnectTimeout, "How long to wait for the channel to open")
	flags.StringVar(&opts.transfer.Serializer, "serializer", opts.transfer.Serializer, "Control message encoding: json or msgpack")

	cmd.AddCommand(newReceiveCmd(opts), newSendCmd(opts))
	return cmd
}

func newReceiveCmd(opts *options) *cobra.Command {
	var (
		outDir     string
		port       int
		autoAccept bool
	)
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Wait for a sender and save incoming files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, isDir, err := util.CheckDirectory(outDir)
			if err != nil {
				return fmt.Errorf("output directory: %w", err)
			}
			if !exists || !isDir {
				return fmt.Errorf("output directory: %s is not a directory", outDir)
			}
			logger, closeLog, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			app := receiverApp.NewApp(&discovery.MDNSAdapter{}, receiverApp.Config{
				Port:       port,
				OutDir:     outDir,
				AutoAccept: autoAccept,
				Transfer:   opts.transfer,
				WebRTC:     opts.webrtcConfig(),
				Logger:     logger,
			})
			if opts.plain {
				return runPlainReceiver(cmd.Context(), app, autoAccept, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runTUI(ui.NewReceiverModel(app, outDir))
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to save received files in")
	cmd.Flags().IntVarP(&port, "port", "p", receiverApp.DefaultPort, "Port for the signaling API")
	cmd.Flags().BoolVarP(&autoAccept, "yes", "y", false, "Accept every offer without asking")
	return cmd
}

func newSendCmd(opts *options) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send [FILE]",
		Short: "Send a file to a receiver",
		Long: "Send a file to a receiver. Without --to the receivers announced on the\n" +
			"local network are listed; without FILE a file picker opens.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			if opts.plain && (path == "" || to == "") {
				return fmt.Errorf("--plain needs both FILE and --to")
			}
			logger, closeLog, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			cfg := senderApp.DefaultConfig()
			cfg.Transfer = opts.transfer
			cfg.WebRTC = opts.webrtcConfig()
			cfg.Logger = logger
			app := senderApp.NewApp(&discovery.MDNSAdapter{}, cfg)
			if opts.plain {
				return runPlainSender(cmd.Context(), app, to, path, cmd.OutOrStdout())
			}
			return runTUI(ui.NewSenderModel(app, to, path))
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "Receiver id or host:port")
	return cmd
}

func runTUI(model tea.Model) error {
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return ui.Err(final)
}

// logger writes to stderr in plain mode and to the log file otherwise.
func (o *options) logger(stderr io.Writer) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	if o.plain {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return logger, func() {}, nil
	}

	f, err := os.OpenFile(o.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(stderr, "failed to close log file: %v\n", err)
		}
	}, nil
}

func (o *options) webrtcConfig() webrtcPkg.Config {
	return webrtcPkg.Config{LANOnly: o.lanOnly}
}
