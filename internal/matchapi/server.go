package matchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gamemeet/gamemeet/internal/util/httputil"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
)

// Server handles poll-mode matchmaking calls for an already-authenticated
// user.
type Server interface {
	Register(ctx context.Context, log *slog.Logger, userID string, req *RegisterRequest) (*RegisterResponse, error)
	Unregister(ctx context.Context, log *slog.Logger, userID string, req *UnregisterRequest) (*UnregisterResponse, error)
	GetRoom(ctx context.Context, log *slog.Logger, userID string, req *GetRoomRequest) (*GetRoomResponse, error)
	Confirm(ctx context.Context, log *slog.Logger, userID string, req *ConfirmRequest) (*ConfirmResponse, error)
	CancelConfirm(ctx context.Context, log *slog.Logger, userID string, req *CancelConfirmRequest) (*CancelConfirmResponse, error)
	GetCompleted(ctx context.Context, log *slog.Logger, userID string, req *GetCompletedRequest) (*GetCompletedResponse, error)
}

// IdentityChecker resolves a bearer token into a user ID.
type IdentityChecker func(token string) (string, error)

type ServerOptions struct {
	IdentityChecker IdentityChecker
}

func extractBearer(hReq *http.Request) string {
	auth := hReq.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return auth[len(prefix):]
}

func makeHandler[Req any, Rsp any](
	log *slog.Logger,
	o *ServerOptions,
	fn func(context.Context, *slog.Logger, string, *Req) (*Rsp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, hReq *http.Request) {
		ctx, cancel := httputil.NewRequestContext(hReq.Context())
		defer cancel()
		log := log.With(
			slog.String("addr", hReq.RemoteAddr),
			slog.String("rid", httputil.ExtractReqID(ctx)),
		)

		if err := func() error {
			log.Info("handle matchapi request")

			if hReq.Method != http.MethodPost {
				log.Warn("unsupported method")
				return httputil.MakeError(http.StatusMethodNotAllowed, "method not allowed")
			}

			userID, err := o.IdentityChecker(extractBearer(hReq))
			if err != nil {
				log.Warn("token auth failed", slogx.Err(err))
				return &Error{Code: ErrBadToken, Message: "bad token auth"}
			}
			log = log.With(slog.String("user_id", userID))

			reqBytes, err := io.ReadAll(hReq.Body)
			if err != nil {
				log.Info("error reading request", slogx.Err(err))
				return nil
			}
			var req Req
			if err := json.Unmarshal(reqBytes, &req); err != nil {
				log.Warn("error unmarshalling json", slogx.Err(err))
				return &Error{Code: ErrMalformed, Message: "unmarshal json request"}
			}

			rsp, err := fn(ctx, log, userID, &req)
			if err != nil {
				if apiErr := (*Error)(nil); errors.As(err, &apiErr) {
					return err
				}
				log.Warn("handler failed", slogx.Err(err))
				return httputil.MakeError(http.StatusInternalServerError, "internal server error")
			}

			rspBytes, err := json.Marshal(rsp)
			if err != nil {
				log.Warn("error marshalling json", slogx.Err(err))
				return httputil.MakeError(http.StatusInternalServerError, "marshal json response")
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(rspBytes); err != nil {
				log.Info("error writing response", slogx.Err(err))
			}
			return nil
		}(); err != nil {
			var apiError *Error
			if errors.As(err, &apiError) {
				var code int
				switch apiError.Code {
				case ErrMalformed:
					code = http.StatusBadRequest
				case ErrNotRegistered:
					code = http.StatusNotFound
				case ErrNoSuchRoom:
					code = http.StatusBadRequest
				case ErrBadToken:
					code = http.StatusUnauthorized
				default:
					code = http.StatusBadRequest
				}
				data, err := json.Marshal(apiError)
				if err != nil {
					log.Warn("error marshalling error json", slogx.Err(err))
					if err := httputil.WriteErrorResponse(fmt.Errorf("marshal error json"), w); err != nil {
						log.Info("error writing error response", slogx.Err(err))
					}
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(code)
				if _, err := w.Write(data); err != nil {
					log.Info("error writing error response", slogx.Err(err))
				}
				return
			}
			if err := httputil.WriteErrorResponse(err, w); err != nil {
				log.Info("error writing error response", slogx.Err(err))
			}
		}
	}
}

func RegisterServer(s Server, mux *http.ServeMux, o ServerOptions, prefix string, log *slog.Logger) error {
	if o.IdentityChecker == nil {
		return fmt.Errorf("no identity checker")
	}
	mux.HandleFunc(prefix+"/register",
		makeHandler(log.With(slog.String("method", "register")), &o, s.Register))
	mux.HandleFunc(prefix+"/unregister",
		makeHandler(log.With(slog.String("method", "unregister")), &o, s.Unregister))
	mux.HandleFunc(prefix+"/get_room",
		makeHandler(log.With(slog.String("method", "get_room")), &o, s.GetRoom))
	mux.HandleFunc(prefix+"/confirm",
		makeHandler(log.With(slog.String("method", "confirm")), &o, s.Confirm))
	mux.HandleFunc(prefix+"/cancel_confirm",
		makeHandler(log.With(slog.String("method", "cancel_confirm")), &o, s.CancelConfirm))
	mux.HandleFunc(prefix+"/get_completed",
		makeHandler(log.With(slog.String("method", "get_completed")), &o, s.GetCompleted))
	return nil
}
