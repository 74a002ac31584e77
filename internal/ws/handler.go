package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/guesswho-backend/internal/engine"
	"github.com/DoyleJ11/guesswho-backend/internal/hub"
	"github.com/DoyleJ11/guesswho-backend/internal/lobby"
	"github.com/DoyleJ11/guesswho-backend/internal/types"
)

const (
	writeTimeout      = 3 * time.Second
	disconnectTimeout = 5 * time.Second
)

type Config struct {
	Hub    *hub.Hub
	Logger *zap.Logger

	// OutboxSize is the number of notifications buffered per seat.
	OutboxSize int

	// OriginPatterns are passed to websocket.Accept; empty means same
	// origin only.
	OriginPatterns []string
}

// Handler upgrades the request and serves one participant for the lifetime
// of the connection. The participant id is assigned here.
func Handler(cfg Config) http.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 32
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			cfg.Logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			cfg:  cfg,
			ctx:  ctx,
		}
		c.log = cfg.Logger.With(zap.String("participant", c.id))
		c.log.Debug("connected")

		defer func() {
			// The request context is gone by now.
			dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
			defer dcancel()
			if err := cfg.Hub.Disconnect(dctx, c.id); err != nil {
				c.log.Warn("disconnect failed", zap.Error(err))
			}
			c.log.Debug("disconnected")
		}()

		c.readLoop()
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	cfg  Config
	log  *zap.Logger
	ctx  context.Context
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.write(types.Error(engine.ErrBadRequest))
			continue
		}

		c.handle(cm)
	}
}

func (c *client) handle(cm types.ClientMessage) {
	h := c.cfg.Hub

	switch cm.Type {
	case types.ActCreateSession:
		seat, stop := c.newSeat(cm.DisplayName)
		if _, err := h.Create(c.ctx, seat); err != nil {
			stop()
			c.fail(cm, err)
		}

	case types.ActJoinSession:
		seat, stop := c.newSeat(cm.DisplayName)
		code := hub.NormalizeCode(cm.Code)
		side, err := h.Join(c.ctx, code, seat)
		if err != nil {
			stop()
			c.log.Debug("join rejected", zap.String("code", code), zap.Error(err))
		}
		c.write(types.JoinResult(code, c.id, side, err))

	case types.ActLeaveSession:
		if err := h.Disconnect(c.ctx, c.id); err != nil {
			c.fail(cm, err)
		}

	default:
		cmd, err := types.ToCommand(c.id, cm)
		if err != nil {
			c.fail(cm, err)
			return
		}
		if err := h.Dispatch(c.ctx, cm.Code, cmd); err != nil {
			c.fail(cm, err)
		}
	}
}

// newSeat makes the outbox for a new seat and starts pumping it to the
// socket. stop abandons the pump when the seat was never taken.
func (c *client) newSeat(displayName string) (lobby.Seat, func()) {
	out := make(chan engine.Event, c.cfg.OutboxSize)
	ctx, stop := context.WithCancel(c.ctx)
	go c.forward(ctx, out)

	return lobby.Seat{ParticipantID: c.id, DisplayName: displayName, Outbox: out}, stop
}

func (c *client) forward(ctx context.Context, out <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				return
			}
			if err := c.write(types.FromEvent(ev)); err != nil {
				return
			}
		}
	}
}

func (c *client) fail(cm types.ClientMessage, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.log.Debug("action rejected", zap.String("type", cm.Type), zap.String("code", cm.Code), zap.Error(err))
	c.write(types.Error(err))
}

// write is safe to call from the reader and any number of seat pumps.
func (c *client) write(msg types.ServerMessage) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}
