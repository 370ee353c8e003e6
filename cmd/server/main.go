// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/archiver"
	"github.com/hassanwarsame/quizduel/internal/auth"
	"github.com/hassanwarsame/quizduel/internal/database"
	"github.com/hassanwarsame/quizduel/internal/handlers"
	"github.com/hassanwarsame/quizduel/internal/ledger"
	"github.com/hassanwarsame/quizduel/internal/match"
	"github.com/hassanwarsame/quizduel/internal/matchmaking"
	"github.com/hassanwarsame/quizduel/internal/middleware"
	"github.com/hassanwarsame/quizduel/internal/presence"
	"github.com/hassanwarsame/quizduel/internal/questions"
	"github.com/hassanwarsame/quizduel/internal/store"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	st, err := store.ConnectRedis(logger)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	leaseTTL := time.Duration(envInt("QUEUE_LEASE_TTL_SEC", 30)) * time.Second
	pm := presence.NewManager(st, leaseTTL, leaseTTL/3, logger)
	stopSweeper, err := pm.StartSweeper(ctx)
	if err != nil {
		log.Fatalf("presence sweeper failed: %v", err)
	}
	defer stopSweeper()

	var pool questions.Pool = questions.NewStaticPool()
	if os.Getenv("QUESTIONS_SOURCE") == "postgres" {
		pool = questions.NewPGPool(database.DB)
	}

	svc := matchmaking.NewService(st, pool, pm, logger)
	lg := ledger.NewPGLedger(database.DB)
	eng := match.NewEngine(st, lg, logger)
	eng.SetCompletionSink(archiver.NewRedisSink(st.Client()))

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler(logger, st))
	mux.HandleFunc("/user/login", handlers.LoginHandler(logger, st))

	// matchmaking
	mux.Handle("/queue/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.QueueWSHandler(logger, svc, st),
	)))
	mux.Handle("/room/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, svc, st),
	)))
	mux.Handle("/room/join", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.JoinRoomHandler(logger, svc),
	)))

	// match websocket
	mux.Handle("/match/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.MatchWSHandler(logger, eng, st),
	)))

	// leaderboard
	mux.Handle("/leaderboard", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LeaderboardHandler(logger, lg),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	server := &http.Server{Addr: addr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", addr)
		errc <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		log.Printf("server exited: %v", err)
	case sig := <-sigs:
		log.Printf("terminating: %v", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
