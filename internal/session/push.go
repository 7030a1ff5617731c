package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gamemeet/gamemeet/internal/matchapi"
	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/util/httputil"
	"github.com/gamemeet/gamemeet/internal/util/idgen"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
	"github.com/gamemeet/gamemeet/internal/util/websockutil"
	"golang.org/x/time/rate"
)

// PushServer is the websocket front of the matchmaking engine. Each
// connection owns a session: while the participant is waiting, a retry loop
// re-runs the matcher at a fixed interval, and quorum events are pushed to
// all member connections through the hub instead of being polled for.
type PushServer struct {
	svc      *matching.Service
	hub      *Hub
	factory  *websockutil.SessionFactory
	identity matchapi.IdentityChecker
	o        Options
	log      *slog.Logger
}

func NewPushServer(
	log *slog.Logger,
	svc *matching.Service,
	hub *Hub,
	identity matchapi.IdentityChecker,
	o Options,
) *PushServer {
	o.FillDefaults()
	return &PushServer{
		svc:      svc,
		hub:      hub,
		factory:  websockutil.NewSessionFactory(o.WebSocket),
		identity: identity,
		o:        o,
		log:      log,
	}
}

func (s *PushServer) ServeHTTP(w http.ResponseWriter, hReq *http.Request) {
	log := s.log.With(
		slog.String("addr", hReq.RemoteAddr),
		slog.String("rid", idgen.ID()),
	)

	userID, err := s.identity(hReq.URL.Query().Get("token"))
	if err != nil {
		log.Warn("token auth failed", slogx.Err(err))
		if err := httputil.WriteErrorResponse(httputil.MakeAuthError("bad token auth", "Bearer"), w); err != nil {
			log.Info("error writing error response", slogx.Err(err))
		}
		return
	}
	log = log.With(slog.String("user_id", userID))

	c := &conn{
		svc:     s.svc,
		hub:     s.hub,
		o:       &s.o,
		log:     log,
		userID:  userID,
		msgCh:   make(chan clientMessage, 8),
		sendCh:  make(chan Frame, 16),
		matchCh: make(chan *matching.Room, 1),
	}

	limiter := rate.NewLimiter(rate.Limit(s.o.MsgRate), s.o.MsgBurst)
	session, err := s.factory.NewSession(w, hReq, log, func(data []byte) error {
		if !limiter.Allow() {
			return fmt.Errorf("message rate exceeded")
		}
		var m clientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			c.Send(errorFrame("bad message", "unmarshal json request"))
			return nil
		}
		select {
		case c.msgCh <- m:
			return nil
		default:
			return fmt.Errorf("message queue overflow")
		}
	})
	if err != nil {
		return
	}
	c.session = session

	log.Info("websocket session started")
	go c.run()
}

// conn is the per-connection state. All fields below session are owned by the
// run goroutine; other goroutines interact only through the channels.
type conn struct {
	svc     *matching.Service
	hub     *Hub
	o       *Options
	log     *slog.Logger
	userID  string
	session *websockutil.Session

	msgCh   chan clientMessage
	sendCh  chan Frame
	matchCh chan *matching.Room

	loopCancel context.CancelFunc
	roomID     string
}

var _ Conn = (*conn)(nil)

// Send queues a frame pushed from outside the connection's own goroutine.
// The frame is dropped if the connection cannot keep up.
func (c *conn) Send(f Frame) {
	select {
	case c.sendCh <- f:
	default:
		c.log.Info("dropping frame for slow connection")
	}
}

func (c *conn) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.stopWaitLoop()
		if c.roomID != "" {
			c.hub.Leave(c.roomID, c)
		}
		// Presence is liveness here: a dropped connection leaves the pool,
		// and an abandoned room surfaces on the next quorum check.
		if _, err := c.svc.Unregister(context.Background(), c.userID); err != nil {
			c.log.Warn("could not unregister on disconnect", slogx.Err(err))
		}
		c.session.Close()
		c.log.Info("websocket session closed")
	}()

	for {
		select {
		case <-c.session.Done():
			return
		case m := <-c.msgCh:
			c.handle(ctx, m)
		case f := <-c.sendCh:
			c.write(f)
		case room := <-c.matchCh:
			c.onMatch(room)
		}
	}
}

func (c *conn) write(f Frame) {
	if err := c.session.WriteJSON(f); err != nil {
		c.log.Info("could not write frame", slogx.Err(err))
	}
}

func (c *conn) handle(ctx context.Context, m clientMessage) {
	switch m.Method {
	case methodStartWait:
		c.handleStartWait(ctx, m)
	case methodQuitWait:
		c.handleQuitWait(ctx)
	case methodStatus:
		c.handleStatus(ctx)
	case methodConfirmMatching:
		c.handleConfirm(ctx, m)
	default:
		c.write(errorFrame("bad message", fmt.Sprintf("unknown method %q", m.Method)))
	}
}

func (c *conn) handleStartWait(ctx context.Context, m clientMessage) {
	if m.Condition == nil {
		c.write(errorFrame("bad message", "missing condition"))
		return
	}
	if err := m.Condition.Validate(); err != nil {
		c.write(errorFrame("bad message", err.Error()))
		return
	}
	ok, err := c.svc.Register(ctx, c.userID, *m.Condition)
	if err != nil {
		c.log.Warn("could not register", slogx.Err(err))
		c.write(errorFrame("internal error", "register failed"))
		return
	}
	if ok {
		c.write(newFrame("waiting started"))
	} else {
		// Reconnect while already in the pool: keep the existing request
		// and just resume the loop.
		c.write(newFrame("already waiting"))
	}
	// Restart the loop unconditionally so a dead one cannot strand the
	// session in waiting.
	c.stopWaitLoop()
	c.startWaitLoop()
}

func (c *conn) handleQuitWait(ctx context.Context) {
	c.stopWaitLoop()
	if _, err := c.svc.Unregister(ctx, c.userID); err != nil {
		c.log.Warn("could not unregister", slogx.Err(err))
		c.write(errorFrame("internal error", "unregister failed"))
		return
	}
	c.write(newFrame("waiting stopped"))
	if c.roomID != "" {
		// Withdrawing after a match abandons the room; tell the other
		// members instead of leaving them to time out.
		c.notifyQuorum(ctx, c.roomID)
		c.hub.Leave(c.roomID, c)
		c.roomID = ""
	}
}

func (c *conn) handleStatus(ctx context.Context) {
	req, room, err := c.svc.Status(ctx, c.userID)
	if err != nil {
		c.log.Warn("could not get status", slogx.Err(err))
		c.write(errorFrame("internal error", "status failed"))
		return
	}
	f := newFrame("status")
	if req != nil {
		f.State = req.State.String()
	} else {
		f.State = matching.StateInactive.String()
	}
	if room != nil {
		f.RoomID = room.ID
		f.RoomName = room.Name
	}
	c.write(f)
}

func (c *conn) handleConfirm(ctx context.Context, m clientMessage) {
	roomID := m.RoomID
	if roomID == "" {
		roomID = c.roomID
	}
	if roomID == "" {
		c.write(errorFrame("bad message", "missing room id"))
		return
	}
	ok, err := c.svc.Confirm(ctx, roomID, c.userID)
	if err != nil {
		if errors.Is(err, matching.ErrNoSuchRoom) {
			c.write(errorFrame("bad message", "no such room"))
			return
		}
		c.log.Warn("could not confirm", slogx.Err(err))
		c.write(errorFrame("internal error", "confirm failed"))
		return
	}
	if !ok {
		c.write(newFrame("cannot confirm"))
		return
	}
	c.notifyQuorum(ctx, roomID)
}

// notifyQuorum checks the room's quorum and pushes the verdict. The final
// verdicts go to every member connection; an intermediate one only to the
// caller.
func (c *conn) notifyQuorum(ctx context.Context, roomID string) {
	status, err := c.svc.CheckQuorum(ctx, roomID)
	if err != nil {
		if errors.Is(err, matching.ErrNoSuchRoom) {
			return
		}
		c.log.Warn("could not check quorum", slogx.Err(err))
		return
	}
	switch status {
	case matching.QuorumComplete:
		f := newFrame("matching complete")
		f.RoomID = roomID
		c.hub.Broadcast(roomID, f)
		if err := c.svc.FinishRoom(ctx, roomID); err != nil {
			c.log.Warn("could not finish room", slogx.Err(err))
		}
	case matching.QuorumAbandoned:
		f := newFrame("matching cancelled")
		f.RoomID = roomID
		c.hub.Broadcast(roomID, f)
	default:
		f := newFrame("confirmed, waiting for others")
		f.RoomID = roomID
		c.write(f)
	}
}

func (c *conn) onMatch(room *matching.Room) {
	c.stopWaitLoop()
	c.roomID = room.ID
	c.hub.Join(room.ID, c)
	f := newFrame("matching found")
	f.RoomID = room.ID
	f.RoomName = room.Name
	c.write(f)
}

func (c *conn) startWaitLoop() {
	if c.loopCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	go c.waitLoop(ctx)
}

func (c *conn) stopWaitLoop() {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
}

// waitLoop re-runs the matcher until a room is found, the request goes away
// or the loop is cancelled.
func (c *conn) waitLoop(ctx context.Context) {
	ticker := time.NewTicker(c.o.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		room, err := c.svc.FindRoom(ctx, c.userID)
		if err != nil {
			if errors.Is(err, matching.ErrNotRegistered) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("matching attempt failed", slogx.Err(err))
			continue
		}
		if room == nil {
			continue
		}
		select {
		case c.matchCh <- room:
		case <-ctx.Done():
		}
		return
	}
}
