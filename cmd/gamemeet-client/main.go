package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gamemeet/gamemeet/internal/matchapi"
	"github.com/gamemeet/gamemeet/internal/util/backoff"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
	"github.com/gamemeet/gamemeet/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var clientCmd = &cobra.Command{
	Use:     "gamemeet-client",
	Args:    cobra.ExactArgs(0),
	Version: version.Version,
	Short:   "Run GameMeet poll clients",
	Long: `GameMeet groups participants waiting for the same activity into rooms.

This command simulates participants going through a full matchmaking cycle
over the poll API: register, wait for a room, confirm and wait for the
others.
`,
}

func withRetry[Rsp any](
	ctx context.Context,
	log *slog.Logger,
	b *backoff.Backoff,
	fn func(context.Context) (*Rsp, error),
) (*Rsp, error) {
	for {
		rsp, err := fn(ctx)
		if err != nil {
			if !matchapi.IsErrorRetriable(err) {
				return nil, err
			}
			log.Warn("transient error", slogx.Err(err))
			if err := b.Retry(ctx, err); err != nil {
				return nil, err
			}
			continue
		}
		b.Reset()
		return rsp, nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func participate(ctx context.Context, log *slog.Logger, api matchapi.API, o *Options) error {
	b, err := backoff.New(o.Backoff)
	if err != nil {
		return fmt.Errorf("create backoff: %w", err)
	}

	reg, err := withRetry(ctx, log, b, func(ctx context.Context) (*matchapi.RegisterResponse, error) {
		return api.Register(ctx, &matchapi.RegisterRequest{Criterion: o.Condition})
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if !reg.IsRegistered {
		log.Info("already registered, reusing request")
	}

	var roomID string
	for {
		rsp, err := withRetry(ctx, log, b, func(ctx context.Context) (*matchapi.GetRoomResponse, error) {
			return api.GetRoom(ctx, &matchapi.GetRoomRequest{})
		})
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}
		if rsp.IsMatched {
			roomID = rsp.RoomID
			log.Info("matched",
				slog.String("room_id", rsp.RoomID),
				slog.String("room_name", rsp.RoomName),
			)
			break
		}
		if err := sleep(ctx, o.PollInterval); err != nil {
			return err
		}
	}

	conf, err := withRetry(ctx, log, b, func(ctx context.Context) (*matchapi.ConfirmResponse, error) {
		return api.Confirm(ctx, &matchapi.ConfirmRequest{RoomID: roomID})
	})
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !conf.IsConfirmed {
		return fmt.Errorf("confirmation rejected")
	}

	for {
		rsp, err := withRetry(ctx, log, b, func(ctx context.Context) (*matchapi.GetCompletedResponse, error) {
			return api.GetCompleted(ctx, &matchapi.GetCompletedRequest{RoomID: roomID})
		})
		if err != nil {
			return fmt.Errorf("get completed: %w", err)
		}
		if rsp.IsCompleted {
			log.Info("matching complete", slog.String("room_id", roomID))
			return nil
		}
		if rsp.IsCancelled {
			log.Info("matching cancelled", slog.String("room_id", roomID))
			return nil
		}
		if err := sleep(ctx, o.PollInterval); err != nil {
			return err
		}
	}
}

func main() {
	p := clientCmd.Flags()
	optsPath := p.StringP(
		"options", "o", "",
		"options file",
	)
	if err := clientCmd.MarkFlagRequired("options"); err != nil {
		panic(err)
	}

	clientCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		var opts Options
		optsData, err := os.ReadFile(*optsPath)
		if err != nil {
			return fmt.Errorf("read options file: %w", err)
		}
		if err := toml.Unmarshal(optsData, &opts); err != nil {
			return fmt.Errorf("unmarshal options file: %w", err)
		}
		opts.FillDefaults()

		if opts.URL == "" {
			return fmt.Errorf("api url not specified in options")
		}
		if len(opts.Tokens) == 0 {
			return fmt.Errorf("no tokens specified in options")
		}
		if err := opts.Condition.Validate(); err != nil {
			return fmt.Errorf("bad condition: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		log := slog.Default()
		httpClient := &http.Client{}

		group, gctx := errgroup.WithContext(ctx)
		for i, token := range opts.Tokens {
			log := log.With(slog.Int("client", i))
			api := matchapi.NewClient(matchapi.ClientOptions{
				Endpoint: opts.URL,
				Token:    token,
			}, httpClient)
			group.Go(func() error {
				return participate(gctx, log, api, &opts)
			})
		}

		if err := group.Wait(); err != nil {
			select {
			case <-ctx.Done():
			default:
				log.Error("fatal error", slogx.Err(err))
			}
			return nil
		}
		return nil
	}

	if err := clientCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
