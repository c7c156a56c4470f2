package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// envelope is the wire format in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, payload any) (core.Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

func decode(raw []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Event{}, fmt.Errorf("bad json: %w", err)
	}
	kind, err := domain.ParseEventKind(env.Event)
	if err != nil {
		return domain.Event{}, err
	}
	ev := domain.Event{Kind: kind}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &ev.Payload); err != nil {
			return domain.Event{}, fmt.Errorf("bad %s payload: %w", env.Event, err)
		}
	}
	return ev, nil
}

func (ctl *SignalWSController) writePump(ctx context.Context, id core.ConnID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump handles one event at a time, so a connection's events are
// processed in arrival order and a slow validator only stalls this connection.
func (ctl *SignalWSController) readPump(ctx context.Context, id core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			if err := ctl.handleSignal(ctx, id, c, data); errors.Is(err, errStop) {
				return
			}
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, id core.ConnID, c *WsSignalConn, data []byte) error {
	ev, err := decode(data)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEvent) {
			log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("unknown signal")
			return nil
		}
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad envelope")
		ctl.sendJSON(c, domain.OutError, domain.ErrorNotice{Text: "Invalid payload."})
		return nil
	}

	// A client asking to disconnect is handled like a closed socket.
	if ev.Kind == domain.EventDisconnect {
		return errStop
	}

	if err := ctl.handler.Handle(ctx, id, ev); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Str("event", ev.Kind.String()).Msg("event not applied")
	}
	return nil
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, v any) {
	f, err := encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(f)
}
