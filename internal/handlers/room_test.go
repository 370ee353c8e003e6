package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/auth"
	"github.com/hassanwarsame/quizduel/internal/matchmaking"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/questions"
	"github.com/hassanwarsame/quizduel/internal/store"
)

func newRoomTestEnv(t *testing.T) (*matchmaking.Service, *store.MemoryStore) {
	t.Helper()
	auth.Init()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	st := store.NewMemoryStore()
	return matchmaking.NewService(st, questions.NewStaticPool(), nil, logger), st
}

func seedProfile(t *testing.T, st *store.MemoryStore, id uuid.UUID, name string) {
	t.Helper()
	doc := models.ProfileDoc{ID: id, Name: name, Avatar: "https://picsum.photos/seed/t/200"}
	if err := st.Put(context.Background(), store.UserPath(id), doc); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func authedRequest(t *testing.T, userID uuid.UUID, method, target, body string) *http.Request {
	t.Helper()
	token, err := auth.CreateJWT(userID.String())
	if err != nil {
		t.Fatalf("create jwt: %v", err)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Cookie", "auth_token="+token)
	return req
}

func TestJoinRoomHandlerCreatesMatch(t *testing.T) {
	svc, st := newRoomTestEnv(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hostID := uuid.New()
	joinerID := uuid.New()
	seedProfile(t, st, hostID, "Host")
	seedProfile(t, st, joinerID, "Joiner")

	res, err := svc.CreateRoom(context.Background(), hostID, models.SubjectGeneral)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	req := authedRequest(t, joinerID, http.MethodPost, "/room/join", `{"code":"`+res.Code+`"}`)
	w := httptest.NewRecorder()
	JoinRoomHandler(logger, svc)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	matchID, err := uuid.Parse(resp["matchId"])
	if err != nil {
		t.Fatalf("matchId not a uuid: %v", err)
	}

	var m models.Match
	if err := st.Get(context.Background(), store.MatchPath(matchID), &m); err != nil {
		t.Fatalf("match doc missing: %v", err)
	}
	if m.Order[0] != hostID || m.Order[1] != joinerID {
		t.Fatalf("unexpected seat order: %v", m.Order)
	}
}

func TestJoinRoomHandlerUnknownCode(t *testing.T) {
	svc, _ := newRoomTestEnv(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	req := authedRequest(t, uuid.New(), http.MethodPost, "/room/join", `{"code":"0000"}`)
	w := httptest.NewRecorder()
	JoinRoomHandler(logger, svc)(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestJoinRoomHandlerSelfJoin(t *testing.T) {
	svc, st := newRoomTestEnv(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hostID := uuid.New()
	seedProfile(t, st, hostID, "Host")
	res, err := svc.CreateRoom(context.Background(), hostID, models.SubjectMath)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	req := authedRequest(t, hostID, http.MethodPost, "/room/join", `{"code":"`+res.Code+`"}`)
	w := httptest.NewRecorder()
	JoinRoomHandler(logger, svc)(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestJoinRoomHandlerRequiresAuth(t *testing.T) {
	svc, _ := newRoomTestEnv(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	req := httptest.NewRequest(http.MethodPost, "/room/join", strings.NewReader(`{"code":"1234"}`))
	w := httptest.NewRecorder()
	JoinRoomHandler(logger, svc)(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
