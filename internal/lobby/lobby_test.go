package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/guesswho-backend/internal/engine"
	"github.com/DoyleJ11/guesswho-backend/internal/roster"
)

// firstRand always hands the first turn to the creator.
type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

type recordingHooks struct {
	mu     sync.Mutex
	joined []string
	left   []string
	closed chan []string
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{closed: make(chan []string, 1)}
}

func (h *recordingHooks) ParticipantJoined(_, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joined = append(h.joined, id)
}

func (h *recordingHooks) joinedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.joined...)
}

func (h *recordingHooks) ParticipantLeft(_, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.left = append(h.left, id)
}

func (h *recordingHooks) Closed(_ string, ids []string) {
	h.closed <- append([]string(nil), ids...)
}

func (h *recordingHooks) leftIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.left...)
}

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan engine.Event, within time.Duration) engine.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return engine.Event{} // unreachable
	}
}

// recvUntil skips events until one of type want arrives.
func recvUntil(t *testing.T, ch <-chan engine.Event, want engine.EventType) engine.Event {
	t.Helper()
	for {
		ev := recvEvent(t, ch, 500*time.Millisecond)
		if ev.Type == want {
			return ev
		}
	}
}

func recvNoEvent(t *testing.T, ch <-chan engine.Event, within time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no event within %v, but got: %+v", within, ev)
	case <-time.After(within):
		// good: nothing
	}
}

func waitClosed(t *testing.T, ch <-chan engine.Event) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox was never closed")
		}
	}
}

func newTestLobby(t *testing.T, hooks Hooks) (*Lobby, chan engine.Event) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan engine.Event, 64)
	l := NewLobby(ctx, Config{
		Code:   "ABC123",
		Engine: engine.New(roster.Default(), firstRand{}),
		Hooks:  hooks,
	}, Seat{ParticipantID: "pa", DisplayName: "Alice", Outbox: out})
	return l, out
}

func send(t *testing.T, l *Lobby, cmd engine.Command) {
	t.Helper()
	require.NoError(t, l.Send(context.Background(), FromClient{Cmd: cmd}))
}

// startGame seats pb, has both choose (pa: c1, pb: c2) and drains the start.
func startGame(t *testing.T, l *Lobby, outA chan engine.Event) chan engine.Event {
	t.Helper()
	outB := make(chan engine.Event, 64)
	side, err := l.Join(context.Background(), Seat{ParticipantID: "pb", DisplayName: "Bob", Outbox: outB})
	require.NoError(t, err)
	require.Equal(t, engine.SideB, side)

	send(t, l, engine.Command{Type: engine.CmdChooseCharacter, ParticipantID: "pa", CharacterID: "c1"})
	send(t, l, engine.Command{Type: engine.CmdChooseCharacter, ParticipantID: "pb", CharacterID: "c2"})

	startA := recvUntil(t, outA, engine.EvtGameStart)
	startB := recvUntil(t, outB, engine.EvtGameStart)
	require.Equal(t, "pa", startA.TurnHolder)
	require.Equal(t, "pa", startB.TurnHolder)
	return outB
}

func TestLobby_Create_SendsCreatedToCreator(t *testing.T) {
	l, out := newTestLobby(t, nil)

	created := recvEvent(t, out, 100*time.Millisecond)
	require.Equal(t, engine.EvtSessionCreated, created.Type)
	assert.Equal(t, "ABC123", created.Code)
	assert.Equal(t, engine.SideA, created.Side)

	update := recvEvent(t, out, 100*time.Millisecond)
	require.Equal(t, engine.EvtSessionUpdate, update.Type)
	require.Len(t, update.Participants, 1)

	assert.Equal(t, 1, l.NumParticipants())
}

func TestLobby_Join_ThirdIsFull(t *testing.T) {
	l, outA := newTestLobby(t, nil)

	outB := make(chan engine.Event, 8)
	_, err := l.Join(context.Background(), Seat{ParticipantID: "pb", Outbox: outB})
	require.NoError(t, err)

	recvUntil(t, outA, engine.EvtNeedChooseCharacter)
	recvUntil(t, outB, engine.EvtNeedChooseCharacter)

	_, err = l.Join(context.Background(), Seat{ParticipantID: "pc", Outbox: make(chan engine.Event, 8)})
	require.ErrorIs(t, err, engine.ErrFull)

	v, err := l.View(context.Background())
	require.NoError(t, err)
	assert.Len(t, v.Participants, 2)
	assert.Equal(t, engine.StatePicking, v.State)
}

func TestLobby_Join_ReportsSeatBeforeReplying(t *testing.T) {
	hooks := newRecordingHooks()
	l, _ := newTestLobby(t, hooks)

	_, err := l.Join(context.Background(), Seat{ParticipantID: "pb", Outbox: make(chan engine.Event, 8)})
	require.NoError(t, err)
	assert.Equal(t, []string{"pb"}, hooks.joinedIDs())

	_, err = l.Join(context.Background(), Seat{ParticipantID: "pc", Outbox: make(chan engine.Event, 8)})
	require.ErrorIs(t, err, engine.ErrFull)
	assert.Equal(t, []string{"pb"}, hooks.joinedIDs())
}

func TestLobby_RejectedActionErrorsOnlyTheActor(t *testing.T) {
	l, outA := newTestLobby(t, nil)
	outB := startGame(t, l, outA)

	send(t, l, engine.Command{Type: engine.CmdEndTurn, ParticipantID: "pb"})

	ev := recvUntil(t, outB, engine.EvtError)
	assert.Equal(t, engine.CodeNotYourTurn, engine.CodeOf(ev.Err))
	recvNoEvent(t, outA, 50*time.Millisecond)

	v, err := l.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pa", v.TurnHolder)
}

func TestLobby_ConcurrentEndTurnsAppliedOnce(t *testing.T) {
	l, outA := newTestLobby(t, nil)
	outB := startGame(t, l, outA)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Send(context.Background(), FromClient{Cmd: engine.Command{Type: engine.CmdEndTurn, ParticipantID: "pa"}})
		}()
	}
	wg.Wait()

	// A GetState round trip guarantees every queued action was applied.
	v, err := l.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pb", v.TurnHolder)

	changed, rejected := 0, 0
	for len(outA) > 0 {
		switch ev := <-outA; ev.Type {
		case engine.EvtTurnChanged:
			changed++
		case engine.EvtError:
			rejected++
		}
	}
	assert.Equal(t, 1, changed)
	assert.Equal(t, n-1, rejected)

	turns := 0
	for len(outB) > 0 {
		if ev := <-outB; ev.Type == engine.EvtTurnChanged {
			turns++
		}
	}
	assert.Equal(t, 1, turns)
}

func TestLobby_CorrectGuess_ClosesBeforeGameOverArrives(t *testing.T) {
	hooks := newRecordingHooks()
	l, outA := newTestLobby(t, hooks)
	outB := startGame(t, l, outA)

	send(t, l, engine.Command{Type: engine.CmdGuessCharacter, ParticipantID: "pa", CharacterID: "c2"})

	over := recvUntil(t, outB, engine.EvtGameOver)

	// The hook ran before the event was handed out.
	select {
	case ids := <-hooks.closed:
		assert.ElementsMatch(t, []string{"pa", "pb"}, ids)
	default:
		t.Fatalf("expected Closed hook before game_over")
	}

	assert.Equal(t, "Alice", over.WinnerDisplayName)
	assert.Equal(t, "c2", over.RevealedCharacterID)

	overA := recvUntil(t, outA, engine.EvtGameOver)
	assert.Equal(t, "pa", overA.WinnerID)

	waitClosed(t, outA)
	waitClosed(t, outB)
	<-l.Done()

	err := l.Send(context.Background(), FromClient{Cmd: engine.Command{Type: engine.CmdEndTurn, ParticipantID: "pb"}})
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestLobby_LeaveNotifiesPeerAndEmptyCloses(t *testing.T) {
	hooks := newRecordingHooks()
	l, outA := newTestLobby(t, hooks)
	outB := startGame(t, l, outA)

	require.NoError(t, l.Send(context.Background(), Leave{ParticipantID: "pa"}))

	left := recvUntil(t, outB, engine.EvtParticipantLeft)
	assert.Equal(t, "pa", left.ParticipantID)
	waitClosed(t, outA)

	v, err := l.View(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v.TurnHolder)
	assert.Equal(t, 1, l.NumParticipants())

	require.NoError(t, l.Send(context.Background(), Leave{ParticipantID: "pb"}))
	select {
	case ids := <-hooks.closed:
		assert.Empty(t, ids)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Closed hook")
	}
	<-l.Done()
	assert.Equal(t, []string{"pa", "pb"}, hooks.leftIDs())
}

func TestLobby_DropSlowClient(t *testing.T) {
	hooks := newRecordingHooks()
	l, outA := newTestLobby(t, hooks)

	// Room for the join update only; the choose prompt overflows it.
	outB := make(chan engine.Event, 1)
	_, err := l.Join(context.Background(), Seat{ParticipantID: "pb", Outbox: outB})
	require.NoError(t, err)

	left := recvUntil(t, outA, engine.EvtParticipantLeft)
	assert.Equal(t, "pb", left.ParticipantID)
	waitClosed(t, outB)

	v, err := l.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v.NumClients)
	assert.Equal(t, []string{"pb"}, hooks.leftIDs())
}

func TestLobby_Shutdown_ClosesOutboxes(t *testing.T) {
	l, out := newTestLobby(t, nil)

	require.NoError(t, l.Send(context.Background(), Shutdown{}))
	waitClosed(t, out)
	<-l.Done()

	_, err := l.View(context.Background())
	require.ErrorIs(t, err, engine.ErrNotFound)
}
