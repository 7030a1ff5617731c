package matchapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gamemeet/gamemeet/internal/matchapi"
	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/memstore"
	"github.com/gamemeet/gamemeet/internal/session"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
	"github.com/stretchr/testify/require"
)

var testTokens = map[string]string{
	"tok-alice": "alice",
	"tok-bob":   "bob",
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := matching.NewService(slogx.DiscardLogger(), memstore.New())
	mux := http.NewServeMux()
	err := matchapi.RegisterServer(
		session.NewPollServer(svc), mux,
		matchapi.ServerOptions{
			IdentityChecker: func(token string) (string, error) {
				userID, ok := testTokens[token]
				if !ok {
					return "", fmt.Errorf("unknown token")
				}
				return userID, nil
			},
		},
		"/api/match", slogx.DiscardLogger(),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, token string) matchapi.API {
	return matchapi.NewClient(matchapi.ClientOptions{
		Endpoint: srv.URL + "/api/match",
		Token:    token,
	}, srv.Client())
}

func TestPollPairScenario(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	alice := newTestClient(srv, "tok-alice")
	bob := newTestClient(srv, "tok-bob")
	pair := matching.Criterion{Topic: "chess", Size: 2}

	for _, api := range []matchapi.API{alice, bob} {
		rsp, err := api.Register(ctx, &matchapi.RegisterRequest{Criterion: pair})
		require.NoError(t, err)
		require.True(t, rsp.IsRegistered)
	}

	// Registering again keeps the original request.
	rsp, err := alice.Register(ctx, &matchapi.RegisterRequest{Criterion: pair})
	require.NoError(t, err)
	require.False(t, rsp.IsRegistered)

	roomRsp, err := alice.GetRoom(ctx, &matchapi.GetRoomRequest{})
	require.NoError(t, err)
	require.True(t, roomRsp.IsMatched)
	require.NotEmpty(t, roomRsp.RoomID)
	require.NotEmpty(t, roomRsp.RoomName)
	roomID := roomRsp.RoomID

	roomRsp, err = bob.GetRoom(ctx, &matchapi.GetRoomRequest{})
	require.NoError(t, err)
	require.True(t, roomRsp.IsMatched)
	require.Equal(t, roomID, roomRsp.RoomID)

	conf, err := alice.Confirm(ctx, &matchapi.ConfirmRequest{RoomID: roomID})
	require.NoError(t, err)
	require.True(t, conf.IsConfirmed)

	done, err := alice.GetCompleted(ctx, &matchapi.GetCompletedRequest{RoomID: roomID})
	require.NoError(t, err)
	require.False(t, done.IsCompleted)
	require.False(t, done.IsCancelled)

	conf, err = bob.Confirm(ctx, &matchapi.ConfirmRequest{RoomID: roomID})
	require.NoError(t, err)
	require.True(t, conf.IsConfirmed)

	for _, api := range []matchapi.API{alice, bob} {
		done, err := api.GetCompleted(ctx, &matchapi.GetCompletedRequest{RoomID: roomID})
		require.NoError(t, err)
		require.True(t, done.IsCompleted)
		require.False(t, done.IsCancelled)
	}
}

func TestPollAbandonment(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	alice := newTestClient(srv, "tok-alice")
	bob := newTestClient(srv, "tok-bob")
	pair := matching.Criterion{Topic: "chess", Size: 2}

	for _, api := range []matchapi.API{alice, bob} {
		_, err := api.Register(ctx, &matchapi.RegisterRequest{Criterion: pair})
		require.NoError(t, err)
	}
	roomRsp, err := alice.GetRoom(ctx, &matchapi.GetRoomRequest{})
	require.NoError(t, err)
	require.True(t, roomRsp.IsMatched)
	roomID := roomRsp.RoomID

	conf, err := alice.Confirm(ctx, &matchapi.ConfirmRequest{RoomID: roomID})
	require.NoError(t, err)
	require.True(t, conf.IsConfirmed)

	unreg, err := bob.Unregister(ctx, &matchapi.UnregisterRequest{})
	require.NoError(t, err)
	require.True(t, unreg.IsUnregistered)

	done, err := alice.GetCompleted(ctx, &matchapi.GetCompletedRequest{RoomID: roomID})
	require.NoError(t, err)
	require.False(t, done.IsCompleted)
	require.True(t, done.IsCancelled)
}

func TestPollCancelConfirm(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	alice := newTestClient(srv, "tok-alice")
	bob := newTestClient(srv, "tok-bob")
	pair := matching.Criterion{Topic: "chess", Size: 2}

	for _, api := range []matchapi.API{alice, bob} {
		_, err := api.Register(ctx, &matchapi.RegisterRequest{Criterion: pair})
		require.NoError(t, err)
	}
	roomRsp, err := alice.GetRoom(ctx, &matchapi.GetRoomRequest{})
	require.NoError(t, err)
	roomID := roomRsp.RoomID

	conf, err := alice.Confirm(ctx, &matchapi.ConfirmRequest{RoomID: roomID})
	require.NoError(t, err)
	require.True(t, conf.IsConfirmed)

	cancel, err := alice.CancelConfirm(ctx, &matchapi.CancelConfirmRequest{})
	require.NoError(t, err)
	require.True(t, cancel.IsCancelled)

	// Nothing left to cancel the second time.
	cancel, err = alice.CancelConfirm(ctx, &matchapi.CancelConfirmRequest{})
	require.NoError(t, err)
	require.False(t, cancel.IsCancelled)
}

func TestPollErrors(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	alice := newTestClient(srv, "tok-alice")

	t.Run("badToken", func(t *testing.T) {
		bad := newTestClient(srv, "tok-mallory")
		_, err := bad.GetRoom(ctx, &matchapi.GetRoomRequest{})
		require.True(t, matchapi.MatchesError(err, matchapi.ErrBadToken), "got: %v", err)
		require.False(t, matchapi.IsErrorRetriable(err))
	})

	t.Run("notRegistered", func(t *testing.T) {
		_, err := alice.GetRoom(ctx, &matchapi.GetRoomRequest{})
		require.True(t, matchapi.MatchesError(err, matchapi.ErrNotRegistered), "got: %v", err)
	})

	t.Run("badCriterion", func(t *testing.T) {
		_, err := alice.Register(ctx, &matchapi.RegisterRequest{
			Criterion: matching.Criterion{Topic: "", Size: 2},
		})
		require.True(t, matchapi.MatchesError(err, matchapi.ErrMalformed), "got: %v", err)
	})

	t.Run("confirmEmptyRoom", func(t *testing.T) {
		_, err := alice.Confirm(ctx, &matchapi.ConfirmRequest{})
		require.True(t, matchapi.MatchesError(err, matchapi.ErrMalformed), "got: %v", err)
	})

	t.Run("confirmUnknownRoom", func(t *testing.T) {
		_, err := alice.Confirm(ctx, &matchapi.ConfirmRequest{RoomID: "no-such-room"})
		require.True(t, matchapi.MatchesError(err, matchapi.ErrNoSuchRoom), "got: %v", err)
	})

	t.Run("completedBeforeRegister", func(t *testing.T) {
		_, err := alice.GetCompleted(ctx, &matchapi.GetCompletedRequest{RoomID: "no-such-room"})
		require.True(t, matchapi.MatchesError(err, matchapi.ErrNotRegistered), "got: %v", err)
	})
}
