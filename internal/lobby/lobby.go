package lobby

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/guesswho-backend/internal/engine"
)

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	Seat  Seat
	Reply chan JoinResult
}

func (Join) isLobbyMsg() {}

type JoinResult struct {
	Side engine.Side
	Err  error
}

type Leave struct{ ParticipantID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Seat is a participant plus the channel its notifications go to. Once
// seated, the lobby owns the outbox and closes it when the seat goes away.
type Seat struct {
	ParticipantID string
	DisplayName   string
	Outbox        chan engine.Event
}

type View struct {
	Code             string                   `json:"code"`
	State            engine.State             `json:"state"`
	NumClients       int                      `json:"numClients"`
	Participants     []engine.ParticipantView `json:"participants"`
	TurnHolder       string                   `json:"turnHolder,omitempty"`
	QuestionPending  bool                     `json:"questionPending"`
	HasAskedThisTurn bool                     `json:"hasAskedThisTurn"`
}

// Hooks tells the owner of the lobby about seats being taken and freed, and
// about the lobby closing for good.
type Hooks interface {
	ParticipantJoined(code, participantID string)
	ParticipantLeft(code, participantID string)
	Closed(code string, participantIDs []string)
}

type Config struct {
	Code   string
	Engine *engine.Engine
	Hooks  Hooks
	Logger *zap.Logger
}

// Lobby serializes every action on one session through a single goroutine.
type Lobby struct {
	code    string
	inbox   chan Msg
	engine  *engine.Engine
	session *engine.Session
	clients map[string]chan engine.Event
	hooks   Hooks
	log     *zap.Logger

	seated     atomic.Int32
	lastActive atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

func NewLobby(parent context.Context, cfg Config, creator Seat) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = noHooks{}
	}

	l := &Lobby{
		code:    cfg.Code,
		inbox:   make(chan Msg, 64),
		engine:  cfg.Engine,
		clients: make(map[string]chan engine.Event),
		hooks:   hooks,
		log:     logger.With(zap.String("code", cfg.Code)),
		ctx:     ctx,
		cancel:  cancel,
	}

	session, events := l.engine.NewSession(cfg.Code, creator.ParticipantID, creator.DisplayName)
	l.session = session
	l.clients[creator.ParticipantID] = creator.Outbox
	l.touch()
	l.dispatch(events)

	l.log.Info("session created", zap.String("participant", creator.ParticipantID))

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				if l.join(msg) {
					l.shutdown()
					return
				}

			case Leave:
				if l.apply(engine.Command{Type: engine.CmdLeave, ParticipantID: msg.ParticipantID}) {
					l.shutdown()
					return
				}

			case FromClient:
				if l.apply(msg.Cmd) {
					l.shutdown()
					return
				}

			case GetState:
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) join(msg Join) (done bool) {
	events, err := l.engine.Apply(l.session, engine.Command{
		Type:          engine.CmdJoin,
		ParticipantID: msg.Seat.ParticipantID,
		DisplayName:   msg.Seat.DisplayName,
	})
	if err != nil {
		l.log.Debug("join rejected", zap.String("participant", msg.Seat.ParticipantID), zap.Error(err))
		msg.Reply <- JoinResult{Err: err}
		return false
	}

	l.clients[msg.Seat.ParticipantID] = msg.Seat.Outbox
	l.touch()
	// Reported before the reply, so the seat is reachable by the time the
	// joiner hears about it.
	l.hooks.ParticipantJoined(l.code, msg.Seat.ParticipantID)
	msg.Reply <- JoinResult{Side: l.session.Participants[msg.Seat.ParticipantID].Side}
	l.log.Info("participant joined", zap.String("participant", msg.Seat.ParticipantID))

	return l.deliver(events)
}

// apply runs cmd through the engine and fans out the result. It reports
// whether the session has ended and the lobby should stop.
func (l *Lobby) apply(cmd engine.Command) (done bool) {
	events, err := l.engine.Apply(l.session, cmd)
	if err != nil {
		l.reject(cmd, err)
		return false
	}
	l.touch()

	if cmd.Type == engine.CmdLeave {
		l.dropClient(cmd.ParticipantID)
		l.hooks.ParticipantLeft(l.code, cmd.ParticipantID)
		l.log.Info("participant left", zap.String("participant", cmd.ParticipantID))
	}
	if ev, ok := engine.FindEvent(events, engine.EvtGameStart); ok {
		l.log.Info("game started", zap.String("turn_holder", ev.TurnHolder))
	}

	return l.deliver(events)
}

// deliver sends events, closes the session when it is over or empty, and
// treats any participant that can't keep up as disconnected.
func (l *Lobby) deliver(events []engine.Event) (done bool) {
	if l.session.Over() || l.session.Empty() {
		// Unregister before anyone hears game over, so a lookup made after
		// receiving it already misses.
		l.hooks.Closed(l.code, l.session.Order)
		l.dispatch(events)
		if l.session.Over() {
			l.log.Info("game over", zap.String("winner", l.session.WinnerID))
		} else {
			l.log.Info("session empty")
		}
		return true
	}

	for _, id := range l.dispatch(events) {
		l.log.Warn("dropping slow participant", zap.String("participant", id))
		if l.apply(engine.Command{Type: engine.CmdLeave, ParticipantID: id}) {
			return true
		}
	}
	return false
}

func (l *Lobby) reject(cmd engine.Command, err error) {
	if errors.Is(err, engine.ErrInternal) {
		l.log.Error("action failed", zap.String("participant", cmd.ParticipantID), zap.String("command", string(cmd.Type)), zap.Error(err))
	} else {
		l.log.Debug("action rejected", zap.String("participant", cmd.ParticipantID), zap.String("command", string(cmd.Type)), zap.Error(err))
	}
	if cmd.Type == engine.CmdLeave {
		return
	}
	l.dispatch([]engine.Event{{Type: engine.EvtError, To: []string{cmd.ParticipantID}, Err: err}})
}

// dispatch hands each event to its recipients without blocking. Recipients
// whose outbox is full are unregistered and returned.
func (l *Lobby) dispatch(events []engine.Event) []string {
	var dropped []string
	for _, ev := range events {
		for _, id := range ev.To {
			ch, ok := l.clients[id]
			if !ok {
				continue
			}
			select {
			case ch <- ev:
				//ok
			default:
				l.dropClient(id)
				dropped = append(dropped, id)
			}
		}
	}
	return dropped
}

func (l *Lobby) dropClient(id string) {
	if ch, ok := l.clients[id]; ok {
		close(ch)
		delete(l.clients, id)
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more events
		delete(l.clients, id)
	}
	l.seated.Store(0)
	l.cancel()
}

func (l *Lobby) touch() {
	l.seated.Store(int32(len(l.session.Participants)))
	l.lastActive.Store(time.Now().UnixNano())
}

func (l *Lobby) view() View {
	v := View{
		Code:             l.code,
		State:            l.session.State,
		NumClients:       len(l.clients),
		Participants:     l.session.Views(),
		TurnHolder:       l.session.TurnHolder,
		QuestionPending:  l.session.Pending != nil,
		HasAskedThisTurn: l.session.HasAskedThisTurn,
	}
	return v
}

func (l *Lobby) Code() string { return l.code }

// Done is closed once the lobby has stopped accepting messages.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Close stops the lobby without waiting for it.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) NumParticipants() int { return int(l.seated.Load()) }

func (l *Lobby) LastActive() time.Time { return time.Unix(0, l.lastActive.Load()) }

// Send queues m for the lobby. A stopped lobby reports engine.ErrNotFound.
func (l *Lobby) Send(ctx context.Context, m Msg) error {
	select {
	case <-l.ctx.Done():
		return engine.ErrNotFound
	default:
	}

	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return engine.ErrNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join seats a new participant and waits for the verdict.
func (l *Lobby) Join(ctx context.Context, seat Seat) (engine.Side, error) {
	reply := make(chan JoinResult, 1)
	if err := l.Send(ctx, Join{Seat: seat, Reply: reply}); err != nil {
		return "", err
	}

	select {
	case res := <-reply:
		return res.Side, res.Err
	case <-l.ctx.Done():
		select {
		case res := <-reply:
			return res.Side, res.Err
		default:
			return "", engine.ErrNotFound
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, engine.ErrNotFound
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

type noHooks struct{}

func (noHooks) ParticipantJoined(string, string) {}
func (noHooks) ParticipantLeft(string, string)   {}
func (noHooks) Closed(string, []string)          {}
