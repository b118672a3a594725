package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/park285/chess-bridge/internal/board"
	"github.com/park285/chess-bridge/internal/notify"
	"github.com/park285/chess-bridge/internal/occupancy"
	"github.com/park285/chess-bridge/pkg/bridgedto"
)

type scriptedEngine struct {
	mu    sync.Mutex
	moves []string
	err   error
	fens  []string
}

func (e *scriptedEngine) BestMove(_ context.Context, fen string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fens = append(e.fens, fen)
	if e.err != nil {
		return "", e.err
	}
	if len(e.moves) == 0 {
		return "", nil
	}
	mv := e.moves[0]
	e.moves = e.moves[1:]
	return mv, nil
}

func (e *scriptedEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fens)
}

type recordingNotifier struct {
	events chan bridgedto.GameOverEvent
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan bridgedto.GameOverEvent, 4)}
}

func (n *recordingNotifier) GameOver(_ context.Context, ev bridgedto.GameOverEvent) error {
	n.events <- ev
	return nil
}

type fixture struct {
	ctrl     *Controller
	engine   *scriptedEngine
	repo     Repository
	notifier *recordingNotifier
	journal  Journal
}

func newFixture(t *testing.T, delay time.Duration, moves ...string) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		engine:   &scriptedEngine{moves: moves},
		repo:     NewMemoryRepository(),
		notifier: newRecordingNotifier(),
		journal:  NewRedisJournal(rdb, "", 0),
	}
	f.ctrl = NewController(f.engine, f.journal, f.repo, f.notifier, Config{GameOverDelay: delay}, nil)
	seq := 0
	f.ctrl.newID = func() string {
		seq++
		return fmt.Sprintf("session-%d", seq)
	}
	t.Cleanup(f.ctrl.Close)
	return f
}

func expectReply(t *testing.T, got Reply, kind Kind, reason Reason, move string) {
	t.Helper()
	if got.Kind != kind || got.Reason != reason || got.Move != move {
		t.Fatalf("reply = {kind:%d reason:%s move:%q}, want {kind:%d reason:%s move:%q}",
			got.Kind, got.Reason, got.Move, kind, reason, move)
	}
}

// moved returns the snapshot with one piece moved and any capture removed.
func moved(t *testing.T, s occupancy.Snapshot, white bool, from, to string) occupancy.Snapshot {
	t.Helper()
	f, ok1 := board.ParseSquare(from)
	d, ok2 := board.ParseSquare(to)
	if !ok1 || !ok2 {
		t.Fatalf("bad squares %s %s", from, to)
	}
	if white {
		s.White = s.White.Minus(board.SetOf(f)).Add(d)
		s.Black = s.Black.Minus(board.SetOf(d))
	} else {
		s.Black = s.Black.Minus(board.SetOf(f)).Add(d)
		s.White = s.White.Minus(board.SetOf(d))
	}
	return s
}

func TestSubmitBeforeStartIsGameOver(t *testing.T) {
	f := newFixture(t, time.Second)
	got := f.ctrl.Submit(context.Background(), "e2e4")
	expectReply(t, got, KindGameOver, ReasonInactive, "")
	if got.Text() != "Game Over" {
		t.Fatalf("text = %q", got.Text())
	}
}

func TestStartInvalidColor(t *testing.T) {
	f := newFixture(t, time.Second)
	for _, in := range []string{"", "red", "whit", "w"} {
		got := f.ctrl.Start(context.Background(), in)
		expectReply(t, got, KindInvalid, ReasonInvalidColor, "")
		if got.Text() != "Invalid" {
			t.Fatalf("Start(%q) text = %q", in, got.Text())
		}
	}
	if st := f.ctrl.Status(); st.Active || st.SessionUUID != "" {
		t.Fatalf("invalid start changed state: %+v", st)
	}
}

func TestStartWhiteThenReply(t *testing.T) {
	f := newFixture(t, time.Second, "e2e4", "g1f3")
	ctx := context.Background()

	got := f.ctrl.Start(ctx, "  WHITE ")
	expectReply(t, got, KindMove, ReasonOpening, "e2e4")

	got = f.ctrl.Submit(ctx, "e7e5")
	expectReply(t, got, KindMove, ReasonFastPath, "g1f3")
	if got.Applied != "e7e5" {
		t.Fatalf("applied = %q", got.Applied)
	}

	st := f.ctrl.Status()
	want := []string{"e2e4", "e7e5", "g1f3"}
	if strings.Join(st.Moves, " ") != strings.Join(want, " ") {
		t.Fatalf("moves = %v, want %v", st.Moves, want)
	}
	if st.Turn != "black" || st.EngineColor != "white" || !st.Active {
		t.Fatalf("status = %+v", st)
	}
}

func TestStartBlackWaits(t *testing.T) {
	f := newFixture(t, time.Second)
	got := f.ctrl.Start(context.Background(), "black")
	expectReply(t, got, KindEmpty, ReasonAwaitingOpponent, "")
	if f.engine.calls() != 0 {
		t.Fatalf("engine queried %d times", f.engine.calls())
	}
}

func TestStartWhiteEngineDown(t *testing.T) {
	f := newFixture(t, time.Second)
	f.engine.err = errors.New("engine down")
	got := f.ctrl.Start(context.Background(), "white")
	expectReply(t, got, KindEmpty, ReasonEngineUnavailable, "")
	if st := f.ctrl.Status(); !st.Active || len(st.Moves) != 0 {
		t.Fatalf("status = %+v", st)
	}
}

func TestIllegalCoordinateMove(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")

	for _, in := range []string{"e2e5", "e7e5", "a1a1", "e7e8q"} {
		got := f.ctrl.Submit(ctx, in)
		expectReply(t, got, KindInvalid, ReasonIllegal, "")
	}
	if n := len(f.ctrl.Status().Moves); n != 0 {
		t.Fatalf("illegal moves mutated state: %d plies", n)
	}
}

func TestEngineFailureKeepsExternalMove(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")
	f.engine.err = errors.New("boom")

	got := f.ctrl.Submit(ctx, "E2E4")
	expectReply(t, got, KindEmpty, ReasonEngineUnavailable, "")
	if got.Applied != "e2e4" {
		t.Fatalf("applied = %q", got.Applied)
	}
	if moves := f.ctrl.Status().Moves; len(moves) != 1 || moves[0] != "e2e4" {
		t.Fatalf("moves = %v", moves)
	}
}

func TestEngineIllegalReplyIsUnavailable(t *testing.T) {
	f := newFixture(t, time.Second, "e2e4")
	got := f.ctrl.Start(context.Background(), "black")
	expectReply(t, got, KindEmpty, ReasonAwaitingOpponent, "")
	got = f.ctrl.Submit(context.Background(), "d2d4")
	expectReply(t, got, KindEmpty, ReasonEngineUnavailable, "")
}

func TestSnapshotStartPositionIsNoChange(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")

	start := f.ctrl.session.Snapshot().String()
	got := f.ctrl.Submit(ctx, start)
	expectReply(t, got, KindEmpty, ReasonNoChange, "")
	if f.engine.calls() != 0 {
		t.Fatal("engine queried for an unchanged snapshot")
	}
}

func TestSnapshotMoveRoundTrip(t *testing.T) {
	f := newFixture(t, time.Second, "e7e5")
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")

	next := moved(t, f.ctrl.session.Snapshot(), true, "e2", "e4")
	got := f.ctrl.Submit(ctx, next.String())
	expectReply(t, got, KindMove, ReasonMoveInferred, "e7e5")
	if got.Applied != "e2e4" {
		t.Fatalf("applied = %q", got.Applied)
	}

	// The board now shows the engine reply; submitting it again is idempotent.
	after := f.ctrl.session.Snapshot()
	want := moved(t, next, false, "e7", "e5")
	if !after.Equal(want) {
		t.Fatalf("snapshot = %s, want %s", after, want)
	}
	got = f.ctrl.Submit(ctx, after.String())
	expectReply(t, got, KindEmpty, ReasonNoChange, "")
	if n := len(f.ctrl.Status().Moves); n != 2 {
		t.Fatalf("plies = %d", n)
	}
}

func TestSnapshotRejections(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")
	start := f.ctrl.session.Snapshot()

	twoGone := start
	twoGone.White = twoGone.White.Minus(board.SetOf(board.NewSquare(4, 1), board.NewSquare(3, 1)))

	cases := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"parse failure", "white:e2:e4", ReasonParseFailure},
		{"no information", "white:;black:", ReasonNoInformation},
		{"garbage", "hello there", ReasonNoInformation},
		{"ambiguous", twoGone.String(), ReasonRejected},
		{"ambiguous again", twoGone.String(), ReasonRejected},
		{"illegal", moved(t, start, true, "e2", "e5").String(), ReasonIllegal},
	}
	for _, tc := range cases {
		got := f.ctrl.Submit(ctx, tc.input)
		expectReply(t, got, KindEmpty, tc.reason, "")
		if got.Text() != "" {
			t.Fatalf("%s: text = %q", tc.name, got.Text())
		}
	}
	if n := len(f.ctrl.Status().Moves); n != 0 {
		t.Fatalf("rejected snapshots mutated state: %d plies", n)
	}
	if f.engine.calls() != 0 {
		t.Fatal("engine queried for rejected snapshots")
	}
}

func TestSnapshotCastling(t *testing.T) {
	f := newFixture(t, time.Second, "b8c6", "g8f6")
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")
	for _, mv := range []string{"e2e4", "g1f3"} {
		if got := f.ctrl.Submit(ctx, mv); got.Kind != KindMove {
			t.Fatalf("submit %s: %+v", mv, got)
		}
	}
	// f1 bishop out of the way, then castle from a snapshot.
	f.engine.moves = []string{"f8e7", "a7a6"}
	if got := f.ctrl.Submit(ctx, "f1c4"); got.Kind != KindMove {
		t.Fatalf("submit f1c4: %+v", got)
	}

	snap := f.ctrl.session.Snapshot()
	snap = moved(t, snap, true, "e1", "g1")
	snap = moved(t, snap, true, "h1", "f1")
	got := f.ctrl.Submit(ctx, snap.String())
	expectReply(t, got, KindMove, ReasonMoveInferred, "a7a6")
	if got.Applied != "e1g1" {
		t.Fatalf("applied = %q", got.Applied)
	}
}

func TestSnapshotBarePromotionIsIllegal(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")

	// Replay to a position where the white pawn on b7 can capture onto a8.
	if err := f.ctrl.session.Replay([]string{
		"a2a4", "h7h6", "a4a5", "h6h5", "a5a6", "h5h4", "a6b7", "h4h3",
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	f.engine.moves = []string{"h3g2"}

	snap := moved(t, f.ctrl.session.Snapshot(), true, "b7", "a8")
	got := f.ctrl.Submit(ctx, snap.String())
	expectReply(t, got, KindEmpty, ReasonIllegal, "")
	if got.Applied != "" || got.Text() != "" {
		t.Fatalf("reply = %+v", got)
	}
	if n := len(f.ctrl.Status().Moves); n != 8 {
		t.Fatalf("plies = %d", n)
	}
	if f.engine.calls() != 0 {
		t.Fatal("engine queried for an illegal snapshot")
	}

	// The promotion piece has to be typed.
	got = f.ctrl.Submit(ctx, "b7a8q")
	expectReply(t, got, KindMove, ReasonFastPath, "h3g2")
}

func TestMoveAfterFailedOpeningQueriesEngine(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.engine.err = errors.New("engine down")
	expectReply(t, f.ctrl.Start(ctx, "white"), KindEmpty, ReasonEngineUnavailable, "")

	f.engine.err = nil
	f.engine.moves = []string{"e7e5"}
	got := f.ctrl.Submit(ctx, "e2e4")
	expectReply(t, got, KindMove, ReasonFastPath, "e7e5")
	if got.Applied != "e2e4" {
		t.Fatalf("applied = %q", got.Applied)
	}
	if f.engine.calls() != 2 {
		t.Fatalf("engine calls = %d", f.engine.calls())
	}
	if moves := f.ctrl.Status().Moves; strings.Join(moves, " ") != "e2e4 e7e5" {
		t.Fatalf("moves = %v", moves)
	}
}

// Fool's mate with the engine delivering it.
func TestEngineCheckmateArchivesAndNotifies(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond, "e7e5", "d8h4")
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")

	expectReply(t, f.ctrl.Submit(ctx, "f2f3"), KindMove, ReasonFastPath, "e7e5")
	got := f.ctrl.Submit(ctx, "g2g4")
	expectReply(t, got, KindMove, ReasonFastPath, "d8h4")

	if f.ctrl.Status().Active {
		t.Fatal("session still active after mate")
	}
	expectReply(t, f.ctrl.Submit(ctx, "a2a3"), KindGameOver, ReasonInactive, "")

	rec, err := f.repo.GetGameBySession(ctx, "session-1")
	if err != nil || rec == nil {
		t.Fatalf("archived record = %v, %v", rec, err)
	}
	if rec.Result != "black" || rec.Method != methodCheckmate || len(rec.MovesUCI) != 4 {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(rec.PGN, "2. g4 Qh4") || !strings.HasSuffix(rec.PGN, "0-1") {
		t.Fatalf("pgn = %q", rec.PGN)
	}

	select {
	case ev := <-f.notifier.events:
		if ev.SessionUUID != "session-1" || ev.Winner != "black" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("game-over notification not delivered")
	}
}

func TestExternalCheckmateReturnsEmpty(t *testing.T) {
	f := newFixture(t, time.Hour, "f2f3", "g2g4", "a2a3")
	ctx := context.Background()
	expectReply(t, f.ctrl.Start(ctx, "white"), KindMove, ReasonOpening, "f2f3")
	expectReply(t, f.ctrl.Submit(ctx, "e7e5"), KindMove, ReasonFastPath, "g2g4")

	got := f.ctrl.Submit(ctx, "d8h4")
	expectReply(t, got, KindEmpty, ReasonCheckmate, "")
	if got.Applied != "d8h4" {
		t.Fatalf("applied = %q", got.Applied)
	}
	if f.engine.calls() != 2 {
		t.Fatalf("engine calls = %d, want 2", f.engine.calls())
	}
	if f.ctrl.Status().Active {
		t.Fatal("session still active after mate")
	}
}

func TestRestartCancelsGameOver(t *testing.T) {
	f := newFixture(t, 100*time.Millisecond, "e7e5", "d8h4")
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")
	f.ctrl.Submit(ctx, "f2f3")
	f.ctrl.Submit(ctx, "g2g4")

	if got := f.ctrl.Start(ctx, "black"); got.Kind != KindEmpty {
		t.Fatalf("restart = %+v", got)
	}
	select {
	case ev := <-f.notifier.events:
		t.Fatalf("stale notification delivered: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
	if st := f.ctrl.Status(); !st.Active || st.SessionUUID != "session-2" || st.Generation != 2 {
		t.Fatalf("status = %+v", st)
	}
}

func TestRestoreReplaysJournal(t *testing.T) {
	f := newFixture(t, time.Second, "e7e5")
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")
	f.ctrl.Submit(ctx, "e2e4")
	wantFEN := f.ctrl.Status().FEN

	other := NewController(&scriptedEngine{}, f.journal, f.repo, nil, Config{}, nil)
	t.Cleanup(other.Close)
	ok, err := other.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
	st := other.Status()
	if st.FEN != wantFEN || st.SessionUUID != "session-1" || !st.Active || st.EngineColor != "black" {
		t.Fatalf("restored status = %+v, want fen %q", st, wantFEN)
	}
	if got := other.Submit(ctx, "e7e5"); got.Kind != KindInvalid {
		t.Fatalf("restored game accepted a replayed move: %+v", got)
	}
}

func TestRestoreEmptyJournal(t *testing.T) {
	f := newFixture(t, time.Second)
	ok, err := f.ctrl.Restore(context.Background())
	if err != nil || ok {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
}

func TestStatusSensorMismatch(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")

	snap := f.ctrl.session.Snapshot()
	snap.White = snap.White.Minus(board.SetOf(board.NewSquare(0, 1), board.NewSquare(1, 1)))
	f.ctrl.Submit(ctx, snap.String())

	st := f.ctrl.Status()
	if strings.Join(st.SensorDiff.White, ",") != "a2,b2" || len(st.SensorDiff.Black) != 0 {
		t.Fatalf("sensor diff = %+v", st.SensorDiff)
	}
}

func TestRenderBoard(t *testing.T) {
	f := newFixture(t, time.Second, "e7e5")
	ctx := context.Background()
	if _, err := f.ctrl.RenderBoard(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("render before start err = %v", err)
	}
	f.ctrl.Start(ctx, "black")
	f.ctrl.Submit(ctx, "e2e4")

	data, err := f.ctrl.RenderBoard(ctx)
	if err != nil {
		t.Fatalf("RenderBoard: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	want := squareSize*boardSquares + boardMargin*2
	if b := img.Bounds(); b.Dx() != want || b.Dy() != want {
		t.Fatalf("bounds = %v", b)
	}
}

func TestRecentGames(t *testing.T) {
	f := newFixture(t, time.Hour, "e7e5", "d8h4")
	ctx := context.Background()
	f.ctrl.Start(ctx, "black")
	f.ctrl.Submit(ctx, "f2f3")
	f.ctrl.Submit(ctx, "g2g4")

	games, err := f.ctrl.RecentGames(ctx, 0)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(games) != 1 || games[0].SessionUUID != "session-1" || games[0].Result != "black" {
		t.Fatalf("games = %+v", games)
	}
}

func gameOverLines(logs *observer.ObservedLogs) int {
	return logs.FilterMessage("Game Over").Len() + logs.FilterMessage("game_over").Len()
}

func TestGameOverLoggedOnce(t *testing.T) {
	for _, tc := range []struct {
		name    string
		useLogs bool
	}{
		{"log notifier", true},
		{"no notifier", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			logger := zap.New(core)
			var n Notifier
			if tc.useLogs {
				ln, err := notify.New(notify.Options{Mode: notify.ModeLog, Logger: logger})
				if err != nil {
					t.Fatalf("notify.New: %v", err)
				}
				n = ln
			}
			engine := &scriptedEngine{moves: []string{"e7e5", "d8h4"}}
			ctrl := NewController(engine, nil, nil, n, Config{GameOverDelay: 10 * time.Millisecond}, logger)
			t.Cleanup(ctrl.Close)

			ctx := context.Background()
			ctrl.Start(ctx, "black")
			ctrl.Submit(ctx, "f2f3")
			ctrl.Submit(ctx, "g2g4")

			deadline := time.Now().Add(2 * time.Second)
			for gameOverLines(logs) == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(50 * time.Millisecond)
			if got := gameOverLines(logs); got != 1 {
				t.Fatalf("game over lines = %d, want 1", got)
			}
		})
	}
}
