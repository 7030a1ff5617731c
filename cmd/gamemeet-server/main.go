package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/BurntSushi/toml"
	"github.com/NYTimes/gziphandler"
	"github.com/gamemeet/gamemeet/internal/database"
	"github.com/gamemeet/gamemeet/internal/matchapi"
	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/session"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
	"github.com/gamemeet/gamemeet/internal/version"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:     "gamemeet-server",
	Args:    cobra.ExactArgs(0),
	Version: version.Version,
	Short:   "Start GameMeet matchmaking server",
	Long: `GameMeet groups participants waiting for the same activity into rooms.

This command runs the GameMeet server, serving the poll API and the
websocket matchmaking endpoint.
`,
}

func makeLogger() *slog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(
			colorable.NewColorableStderr(),
			&slog.HandlerOptions{Level: slog.LevelDebug},
		))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func main() {
	p := serverCmd.Flags()
	optsPath := p.StringP(
		"options", "o", "",
		"options file",
	)
	if err := serverCmd.MarkFlagRequired("options"); err != nil {
		panic(err)
	}

	serverCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		rawOpts, err := os.ReadFile(*optsPath)
		if err != nil {
			return fmt.Errorf("read options: %w", err)
		}
		var opts Options
		if err := toml.Unmarshal(rawOpts, &opts); err != nil {
			return fmt.Errorf("unmarshal options: %w", err)
		}
		opts.FillDefaults()
		if len(opts.Tokens) == 0 {
			return fmt.Errorf("no tokens specified in options")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		log := makeLogger()

		db, err := database.New(log, opts.DB)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		svc := matching.NewService(log, db)
		hub := session.NewHub()

		checker := func(token string) (string, error) {
			userID, ok := opts.Tokens[token]
			if !ok || token == "" {
				return "", fmt.Errorf("unknown token")
			}
			return userID, nil
		}

		apiMux := http.NewServeMux()
		if err := matchapi.RegisterServer(
			session.NewPollServer(svc), apiMux,
			matchapi.ServerOptions{IdentityChecker: checker},
			"/api/match", log,
		); err != nil {
			return fmt.Errorf("register server: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/api/", gziphandler.GzipHandler(apiMux))
		mux.Handle("/ws/match", session.NewPushServer(log, svc, hub, checker, opts.Session))

		servFin := make(chan struct{})
		servCtx, servCancel := context.WithCancel(ctx)
		server := &http.Server{
			Addr:        opts.Addr,
			Handler:     mux,
			BaseContext: func(net.Listener) context.Context { return servCtx },
		}
		go func() {
			defer close(servFin)
			log.Info("starting http server", slog.String("addr", opts.Addr))
			if err := server.ListenAndServe(); err != nil {
				select {
				case <-servCtx.Done():
				default:
					log.Warn("listen http server failed", slogx.Err(err))
				}
			}
		}()
		defer func() { <-servFin }()
		defer func() {
			log.Info("stopping server")
			servCancel()
			_ = server.Shutdown(servCtx)
		}()

		<-ctx.Done()
		return nil
	}

	if err := serverCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
