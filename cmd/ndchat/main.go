// Command ndchat is a terminal client for a streaming chat server.
//
// Usage:
//
//	ndchat [flags]                interactive chat
//	ndchat -p "message" [flags]   send one message and print the answer
//	ndchat health                 query the server's health endpoint
//
// Settings are read from ~/.ndchat/config.yaml (or --config), then the
// NDCHAT_URL environment variable, then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/ndchat"
	bt "github.com/fwojciec/ndchat/bubbletea"
	ndhttp "github.com/fwojciec/ndchat/http"
	ndjson "github.com/fwojciec/ndchat/json"
	"github.com/fwojciec/ndchat/plain"
	"github.com/fwojciec/ndchat/replay"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// errTurnFailed reports a failed turn whose error was already printed.
var errTurnFailed = errors.New("turn failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd(os.Getenv).ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errTurnFailed):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "ndchat: %v\n", err)
		os.Exit(1)
	}
}

// flags holds raw command-line values. Settings flags only override the
// config file when set.
type flags struct {
	configPath    string
	url           string
	streamPath    string
	healthPath    string
	logLevel      string
	logFile       string
	transcriptDir string
	timeout       time.Duration

	print      string
	quiet      bool
	replay     string
	replayRate float64
	record     string
	resume     string
	noSave     bool
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "ndchat",
		Short:         "Chat with a streaming assistant endpoint",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f, getenv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("print") {
				return runPrint(cmd, cfg, f)
			}
			return runChat(cmd, cfg, f)
		},
	}

	addSettingsFlags(root, f)

	fl := root.Flags()
	fl.StringVarP(&f.print, "print", "p", "", `send one message, print the answer and exit ("-" reads stdin)`)
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "with --print, write only the answer")
	fl.StringVar(&f.transcriptDir, "transcript-dir", "~/.ndchat/transcripts", "directory for saved transcripts")
	fl.StringVar(&f.resume, "resume", "", "transcript file to continue")
	fl.BoolVar(&f.noSave, "no-save", false, "do not save the transcript on exit")
	fl.StringVar(&f.replay, "replay", "", "answer every message from a recorded stream file")
	fl.Float64Var(&f.replayRate, "replay-rate", 0, "chunks per second when replaying, 0 for unpaced")
	fl.StringVar(&f.record, "record", "", "append raw response streams to this file")

	root.AddCommand(newHealthCmd(f, getenv))
	return root
}

// addSettingsFlags registers the flags that override config file settings on
// cmd and its subcommands.
func addSettingsFlags(cmd *cobra.Command, f *flags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default ~/.ndchat/config.yaml)")
	pf.StringVar(&f.url, "url", defaultURL, "server base URL (env "+urlEnvVar+")")
	pf.StringVar(&f.streamPath, "stream-path", "/chat/stream", "chat stream endpoint path")
	pf.StringVar(&f.healthPath, "health-path", "/health", "health endpoint path")
	pf.StringVar(&f.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	pf.StringVar(&f.logFile, "log-file", "~/.ndchat/ndchat.log", "log file, empty to disable logging")
	pf.DurationVar(&f.timeout, "timeout", defaultTimeout, "connect and response header timeout, 0 for none")
}

func runPrint(cmd *cobra.Command, cfg config, f *flags) error {
	message := f.print
	if message == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		message = string(data)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	tr, closeTr, err := newTransport(cfg, f)
	if err != nil {
		return err
	}
	defer closeTr()

	opts := []plain.Option{plain.WithStatusWriter(cmd.ErrOrStderr())}
	if f.quiet {
		opts = append(opts, plain.WithQuiet())
	}
	r := plain.New(cmd.OutOrStdout(), ndchat.DefaultTheme(), opts...)
	s := ndchat.NewSession(tr, r, ndchat.WithLogger(logger))

	turn, err := s.Send(cmd.Context(), message)
	if err != nil {
		return err
	}
	if turn.Err != nil {
		return errTurnFailed
	}
	return nil
}

func runChat(cmd *cobra.Command, cfg config, f *flags) error {
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	transcript, err := openTranscript(f.resume, cfg.URL)
	if err != nil {
		return err
	}

	tr, closeTr, err := newTransport(cfg, f)
	if err != nil {
		return err
	}
	defer closeTr()

	r := bt.NewRenderer()
	s := ndchat.NewSession(tr, r, ndchat.WithLogger(logger))
	m := bt.New(s, r, ndchat.DefaultTheme(), bt.WithHistory(transcript.Turns))

	logger.Info().Str("url", cfg.URL).Str("transcript", transcript.ID).Msg("chat started")
	final, err := bt.Run(cmd.Context(), m)
	if err != nil {
		return fmt.Errorf("TUI: %w", err)
	}

	turns := final.Turns()
	if f.noSave || len(turns) == len(transcript.Turns) {
		return nil
	}
	for _, turn := range turns[len(transcript.Turns):] {
		transcript.Add(turn)
	}
	path := f.resume
	if path == "" {
		path = filepath.Join(cfg.TranscriptDir, transcript.ID+".json")
	}
	if err := ndjson.Save(path, transcript); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Transcript saved to %s\n", path)
	return nil
}

// openTranscript loads the transcript at path, or starts a new one.
func openTranscript(path, endpoint string) (ndchat.Transcript, error) {
	if path != "" {
		t, err := ndjson.Load(expandHome(path))
		if err != nil {
			return ndchat.Transcript{}, fmt.Errorf("load transcript: %w", err)
		}
		return t, nil
	}
	now := time.Now()
	return ndchat.Transcript{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// newTransport builds the transport for cfg: the HTTP client, or a replay
// of a recorded stream, optionally recording what it serves.
func newTransport(cfg config, f *flags) (ndchat.Transport, func(), error) {
	var (
		tr      ndchat.Transport
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if f.replay != "" {
		file, err := os.Open(expandHome(f.replay))
		if err != nil {
			return nil, nil, fmt.Errorf("open replay: %w", err)
		}
		defer file.Close()
		rt, err := replay.New(file, replay.WithRate(rate.Limit(f.replayRate)))
		if err != nil {
			return nil, nil, err
		}
		tr = rt
	} else {
		tr = ndhttp.New(cfg.URL,
			ndhttp.WithHTTPClient(newHTTPClient(cfg.Timeout)),
			ndhttp.WithStreamPath(cfg.StreamPath),
			ndhttp.WithHealthPath(cfg.HealthPath),
		)
	}

	if f.record != "" {
		path := expandHome(f.record)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create record directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open record file: %w", err)
		}
		closers = append(closers, file)
		tr = replay.Record(file)(tr)
	}
	return tr, closeAll, nil
}

// newHTTPClient bounds connection setup and the wait for response headers.
// The streamed body itself is not limited.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			ResponseHeaderTimeout: timeout,
			ForceAttemptHTTP2:     true,
		},
	}
}

// newLogger opens the log file. The terminal is never written to so the TUI
// stays intact.
func newLogger(cfg config) (zerolog.Logger, func(), error) {
	if strings.TrimSpace(cfg.LogFile) == "" {
		return zerolog.Nop(), func() {}, nil
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	logger := zerolog.New(file).Level(level).With().Timestamp().Logger()
	return logger, func() { file.Close() }, nil
}
