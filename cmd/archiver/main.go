// cmd/archiver/main.go runs the asynchronous match archiver: it pops
// finished-match records from the Redis queue and persists them to Postgres.
package main

import (
	"os"
	"os/signal"

	_ "github.com/joho/godotenv/autoload"

	"github.com/hassanwarsame/quizduel/internal/archiver"
)

func main() {
	svc := archiver.NewService()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		<-sigs
		svc.Stop()
	}()

	svc.Run()
}
