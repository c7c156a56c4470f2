package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
)

// Handler consumes the inbound events of every connection.
type Handler interface {
	Handle(ctx context.Context, conn core.ConnID, ev domain.Event) error
}

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

// SignalWSController is the WebSocket transport. It implements core.Transport.
type SignalWSController struct {
	handler  Handler
	opts     Options
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[core.ConnID]*WsSignalConn
}

var (
	_ core.Transport        = (*SignalWSController)(nil)
	_ core.SignalConnection = (*WsSignalConn)(nil)
)

func NewSignalWSController(opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	ctl := &SignalWSController{
		opts:  opts,
		conns: make(map[core.ConnID]*WsSignalConn),
	}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

// SetHandler must be called before the first connection is accepted.
func (ctl *SignalWSController) SetHandler(h Handler) { ctl.handler = h }

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return lo.Contains(ctl.opts.AllowedOrigins, "*") || lo.Contains(ctl.opts.AllowedOrigins, origin)
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	room   domain.RoomID
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *WsSignalConn) Room() domain.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (ctl *SignalWSController) lookup(id core.ConnID) (*WsSignalConn, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	c, ok := ctl.conns[id]
	return c, ok
}

func (ctl *SignalWSController) Emit(id core.ConnID, event string, payload any) error {
	c, ok := ctl.lookup(id)
	if !ok {
		return core.ErrConnClosed
	}
	f, err := encode(event, payload)
	if err != nil {
		return err
	}
	return c.TrySend(f)
}

func (ctl *SignalWSController) Broadcast(ids []core.ConnID, event string, payload any) map[core.ConnID]error {
	failed := make(map[core.ConnID]error)
	f, err := encode(event, payload)
	if err != nil {
		for _, id := range ids {
			failed[id] = err
		}
		return failed
	}
	for _, id := range ids {
		c, ok := ctl.lookup(id)
		if !ok {
			failed[id] = core.ErrConnClosed
			continue
		}
		if err := c.TrySend(f); err != nil {
			failed[id] = err
		}
	}
	return failed
}

func (ctl *SignalWSController) Subscribe(id core.ConnID, room domain.RoomID) {
	if c, ok := ctl.lookup(id); ok {
		c.mu.Lock()
		c.room = room
		c.mu.Unlock()
	}
}

func (ctl *SignalWSController) Unsubscribe(id core.ConnID, room domain.RoomID) {
	if c, ok := ctl.lookup(id); ok {
		c.mu.Lock()
		if c.room == room {
			c.room = ""
		}
		c.mu.Unlock()
	}
}

func (ctl *SignalWSController) Close(id core.ConnID) {
	if c, ok := ctl.lookup(id); ok {
		c.Close()
	}
}

// Connections is the number of open sockets.
func (ctl *SignalWSController) Connections() int {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return len(ctl.conns)
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	if ctl.handler == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	id := core.ConnID(uuid.NewString())
	client := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctl.mu.Lock()
	ctl.conns[id] = conn
	ctl.mu.Unlock()
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("client", client).Msg("new WS connection")

	go ctl.serve(ctx, id, conn)
}

// serve runs both pumps and reports the disconnect once they are done.
func (ctl *SignalWSController) serve(ctx context.Context, id core.ConnID, conn *WsSignalConn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, id, conn) })
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, id, conn)
	})
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Err(r.AsError()).Str("module", "signal").Str("conn", string(id)).Msg("pump panic")
		conn.Close()
	}

	ctl.mu.Lock()
	delete(ctl.conns, id)
	ctl.mu.Unlock()

	if err := ctl.handler.Handle(context.WithoutCancel(ctx), id, domain.Event{Kind: domain.EventDisconnect}); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("disconnect")
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("connection closed")
}

var errStop = errors.New("stop reading")
