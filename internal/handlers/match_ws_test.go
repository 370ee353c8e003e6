package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/auth"
	"github.com/hassanwarsame/quizduel/internal/ledger"
	"github.com/hassanwarsame/quizduel/internal/match"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// seedMatch puts a two-player active match and both profiles into st.
func seedMatch(t *testing.T, st *store.MemoryStore, p1, p2 uuid.UUID) *models.Match {
	t.Helper()
	m := &models.Match{
		ID:      uuid.New(),
		Status:  models.MatchActive,
		Subject: models.SubjectMath,
		Order:   [2]uuid.UUID{p1, p2},
		Players: map[uuid.UUID]*models.MatchPlayer{
			p1: {Name: "amina", Connected: true},
			p2: {Name: "bashir", Connected: true},
		},
		Turn: p1,
		Questions: []models.Question{
			{ID: uuid.NewString(), Prompt: "prompt", Options: []string{"a", "b"}, Correct: 0, Subject: models.SubjectMath},
		},
	}
	ctx := context.Background()
	if err := st.Put(ctx, store.MatchPath(m.ID), m); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	for _, pid := range m.Order {
		mID := m.ID
		if err := st.Put(ctx, store.UserPath(pid), models.ProfileDoc{
			ID: pid, Name: m.Players[pid].Name, ActiveMatch: &mID,
		}); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	return m
}

func writeWSFrame(t *testing.T, ctx context.Context, c *websocket.Conn, msg map[string]any) {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := c.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func newMatchWSServer(t *testing.T) (*httptest.Server, *store.MemoryStore, *match.Engine) {
	t.Helper()
	auth.Init()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := store.NewMemoryStore()
	eng := match.NewEngine(st, ledger.NewMemoryLedger(), logger)
	srv := httptest.NewServer(MatchWSHandler(logger, eng, st))
	t.Cleanup(srv.Close)
	return srv, st, eng
}

// An out-of-turn submission must come back as an error frame on the same
// socket, interleaved with whatever state frames are in flight.
func TestMatchWSOutOfTurnGetsErrorFrame(t *testing.T) {
	srv, st, _ := newMatchWSServer(t)

	p1, p2 := uuid.New(), uuid.New()
	m := seedMatch(t, st, p1, p2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := dialWS(t, ctx, srv.URL+"/match/ws/"+m.ID.String(), "match", p2)
	defer c.Close(websocket.StatusNormalClosure, "")

	frame := readWSFrame(t, ctx, c)
	if frame["type"] != "match_state" {
		t.Fatalf("expected match_state first, got %v", frame)
	}

	writeWSFrame(t, ctx, c, map[string]any{"type": "submit_answer", "correct": true})

	for {
		frame = readWSFrame(t, ctx, c)
		if frame["type"] == "match_state" {
			continue
		}
		if frame["type"] != "error" || frame["message"] != "not your turn" {
			t.Fatalf("expected a turn error frame, got %v", frame)
		}
		break
	}

	var cur models.Match
	if err := st.Get(ctx, store.MatchPath(m.ID), &cur); err != nil {
		t.Fatalf("get match: %v", err)
	}
	if cur.Turn != p1 {
		t.Fatalf("turn moved on a rejected submission: %v", cur.Turn)
	}
}

// Dropping the socket must mark the participant disconnected even though no
// leave_match frame was ever sent.
func TestMatchWSDisconnectMarksPlayerDisconnected(t *testing.T) {
	srv, st, _ := newMatchWSServer(t)

	p1, p2 := uuid.New(), uuid.New()
	m := seedMatch(t, st, p1, p2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := dialWS(t, ctx, srv.URL+"/match/ws/"+m.ID.String(), "match", p1)

	frame := readWSFrame(t, ctx, c)
	if frame["type"] != "match_state" {
		t.Fatalf("expected match_state first, got %v", frame)
	}

	c.Close(websocket.StatusNormalClosure, "going away")

	deadline := time.Now().Add(5 * time.Second)
	for {
		var cur models.Match
		if err := st.Get(ctx, store.MatchPath(m.ID), &cur); err != nil {
			t.Fatalf("get match: %v", err)
		}
		if !cur.Players[p1].Connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("player never marked disconnected after socket close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
