package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	raven "github.com/getsentry/raven-go"
	"github.com/joho/godotenv"

	"github.com/notekeep/notekeep-backend/api"
	"github.com/notekeep/notekeep-backend/db"
	"github.com/notekeep/notekeep-backend/push"
	"github.com/notekeep/notekeep-backend/scheduler"
)

func main() {
	godotenv.Load()
	raven.SetDSN(os.Getenv("SENTRY_DSN"))

	cfg, err := db.LoadEnvironmentVariables()
	if err != nil {
		log.Fatal(err)
	}
	sqldb, err := db.InitSQLDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}
	// Missing VAPID configuration fails here, not at the first delivery.
	sender, err := push.MakeSenderFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	dispatcher := &push.Dispatcher{Registry: sqldb, Sender: sender}

	sched, err := scheduler.MakeSchedulerFromEnv(sqldb, dispatcher)
	if err != nil {
		log.Fatal(err)
	}
	sched.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		sched.Stop()
		os.Exit(0)
	}()

	a := api.API{
		Database:       sqldb,
		Dispatcher:     dispatcher,
		VAPIDPublicKey: sender.PublicKey(),
	}
	mux := http.NewServeMux()
	log.Fatal(http.ListenAndServe(":"+cfg.Port, a.RegisterHandlers(mux)))
}
