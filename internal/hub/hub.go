package hub

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/guesswho-backend/internal/engine"
	"github.com/DoyleJ11/guesswho-backend/internal/lobby"
	"github.com/DoyleJ11/guesswho-backend/internal/roomcode"
)

var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Seat  lobby.Seat
	Reply chan Created
}

type Created struct {
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// LobbyFor resolves the lobby a participant is seated in. With Detach set
// the participant is also dropped from the index.
type LobbyFor struct {
	ParticipantID string
	Detach        bool
	Reply         chan *lobby.Lobby
}

type IndexParticipant struct {
	ParticipantID string
	Code          string
}

type ParticipantLeft struct {
	ParticipantID string
	Code          string
}

type RemoveLobby struct {
	Code           string
	ParticipantIDs []string
}

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct{}

type Stats struct {
	Sessions     int `json:"sessions"`
	Participants int `json:"participants"`
}

func (CreateSession) isHubMsg()    {}
func (GetLobby) isHubMsg()         {}
func (LobbyFor) isHubMsg()         {}
func (IndexParticipant) isHubMsg() {}
func (ParticipantLeft) isHubMsg()  {}
func (RemoveLobby) isHubMsg()      {}
func (GetStats) isHubMsg()         {}
func (ShutdownHub) isHubMsg()      {}

type Config struct {
	Engine *engine.Engine
	Logger *zap.Logger

	// NewCode defaults to roomcode.Generate.
	NewCode func() (string, error)

	// Empty sessions idle longer than IdleTimeout are removed every
	// SweepInterval. A zero interval disables the sweep.
	SweepInterval time.Duration
	IdleTimeout   time.Duration
}

// Hub is the registry of live sessions. It owns the code -> lobby table and
// the participant -> code index; only its own goroutine touches them.
type Hub struct {
	inbox        chan HubMsg
	lobbies      map[string]*lobby.Lobby
	participants map[string]string
	cfg          Config
	log          *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.NewCode == nil {
		cfg.NewCode = roomcode.Generate
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &Hub{
		inbox:        make(chan HubMsg, 64),
		lobbies:      make(map[string]*lobby.Lobby),
		participants: make(map[string]string),
		cfg:          cfg,
		log:          cfg.Logger,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.cfg.SweepInterval > 0 {
		ticker := time.NewTicker(h.cfg.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case now := <-sweep:
			h.sweep(now)

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg.Seat)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case LobbyFor:
				code, ok := h.participants[msg.ParticipantID]
				if ok && msg.Detach {
					delete(h.participants, msg.ParticipantID)
				}
				msg.Reply <- h.lobbies[code]

			case IndexParticipant:
				// The lobby may have closed between the join and this message.
				if _, ok := h.lobbies[msg.Code]; ok {
					h.participants[msg.ParticipantID] = msg.Code
				}

			case ParticipantLeft:
				if h.participants[msg.ParticipantID] == msg.Code {
					delete(h.participants, msg.ParticipantID)
				}

			case RemoveLobby:
				h.remove(msg.Code, msg.ParticipantIDs)

			case GetStats:
				msg.Reply <- Stats{Sessions: len(h.lobbies), Participants: len(h.participants)}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(seat lobby.Seat) Created {
	var code string
	for {
		c, err := h.cfg.NewCode()
		if err != nil {
			h.log.Error("failed to generate session code", zap.Error(err))
			return Created{Err: errors.Join(engine.ErrInternal, err)}
		}
		if h.lobbies[c] == nil {
			code = c
			break
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}

	lb := lobby.NewLobby(h.ctx, lobby.Config{
		Code:   code,
		Engine: h.cfg.Engine,
		Hooks:  hooks{h},
		Logger: h.log,
	}, seat)
	h.lobbies[code] = lb
	h.participants[seat.ParticipantID] = code
	return Created{Code: code, Lobby: lb}
}

func (h *Hub) remove(code string, participantIDs []string) {
	if _, ok := h.lobbies[code]; !ok {
		return
	}
	delete(h.lobbies, code)
	for _, id := range participantIDs {
		if h.participants[id] == code {
			delete(h.participants, id)
		}
	}
	h.log.Info("session removed", zap.String("code", code))
}

// sweep is a safety net for rooms that emptied without closing themselves.
func (h *Hub) sweep(now time.Time) {
	for code, lb := range h.lobbies {
		if lb.NumParticipants() > 0 || now.Sub(lb.LastActive()) < h.cfg.IdleTimeout {
			continue
		}
		lb.Close()
		delete(h.lobbies, code)
		for id, c := range h.participants {
			if c == code {
				delete(h.participants, id)
			}
		}
		h.log.Info("swept idle session", zap.String("code", code))
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	clear(h.participants)
	h.cancel()
}

// Close stops the hub and every lobby it owns, and waits for the hub loop
// to exit.
func (h *Hub) Close() error {
	h.cancel()
	<-h.done
	return nil
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// NormalizeCode upper-cases and trims what a player typed.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create opens a new session with seat as its creator on side A. A
// participant already seated elsewhere is disconnected from there first.
func (h *Hub) Create(ctx context.Context, seat lobby.Seat) (string, error) {
	if err := h.Disconnect(ctx, seat.ParticipantID); err != nil {
		return "", err
	}

	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateSession{Seat: seat, Reply: reply}); err != nil {
		return "", err
	}
	created, err := await(ctx, h, reply)
	if err != nil {
		return "", err
	}
	if created.Err != nil {
		return "", created.Err
	}

	h.log.Info("created session", zap.String("code", created.Code), zap.String("participant", seat.ParticipantID))
	return created.Code, nil
}

// Join seats seat on side B of the session with the given code.
func (h *Hub) Join(ctx context.Context, code string, seat lobby.Seat) (engine.Side, error) {
	if err := h.Disconnect(ctx, seat.ParticipantID); err != nil {
		return "", err
	}

	code = NormalizeCode(code)
	lb, err := h.Lookup(ctx, code)
	if err != nil {
		return "", err
	}

	// The lobby indexes the seat itself through hooks.ParticipantJoined.
	return lb.Join(ctx, seat)
}

func (h *Hub) Lookup(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: NormalizeCode(code), Reply: reply}); err != nil {
		return nil, err
	}
	lb, err := await(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, engine.ErrNotFound
	}
	return lb, nil
}

// Dispatch forwards cmd to the session with the given code. The acting
// participant has to be seated in that session.
func (h *Hub) Dispatch(ctx context.Context, code string, cmd engine.Command) error {
	lb, err := h.lobbyFor(ctx, cmd.ParticipantID, false)
	if err != nil {
		return err
	}
	if lb == nil || lb.Code() != NormalizeCode(code) {
		return engine.ErrNotFound
	}
	return lb.Send(ctx, lobby.FromClient{Cmd: cmd})
}

// Disconnect removes the participant from whatever session it is in. It
// is a no-op for participants that aren't seated anywhere.
func (h *Hub) Disconnect(ctx context.Context, participantID string) error {
	lb, err := h.lobbyFor(ctx, participantID, true)
	if err != nil || lb == nil {
		return err
	}

	err = lb.Send(ctx, lobby.Leave{ParticipantID: participantID})
	if errors.Is(err, engine.ErrNotFound) {
		return nil // already gone
	}
	return err
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.send(ctx, GetStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	return await(ctx, h, reply)
}

func (h *Hub) lobbyFor(ctx context.Context, participantID string, detach bool) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, LobbyFor{ParticipantID: participantID, Detach: detach, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// hooks lets lobbies report back without ever blocking on a stopped hub.
type hooks struct{ h *Hub }

func (k hooks) ParticipantJoined(code, participantID string) {
	select {
	case k.h.inbox <- IndexParticipant{ParticipantID: participantID, Code: code}:
	case <-k.h.done:
	}
}

func (k hooks) ParticipantLeft(code, participantID string) {
	select {
	case k.h.inbox <- ParticipantLeft{ParticipantID: participantID, Code: code}:
	case <-k.h.done:
	}
}

func (k hooks) Closed(code string, participantIDs []string) {
	ids := append([]string(nil), participantIDs...)
	select {
	case k.h.inbox <- RemoveLobby{Code: code, ParticipantIDs: ids}:
	case <-k.h.done:
	}
}
