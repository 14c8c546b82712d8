package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/skillquest-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}

	if err := application.Start(); err != nil {
		application.Log.Error("Start failed", "error", err)
		application.Close()
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- application.Run(":" + application.Cfg.Port)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		application.Log.Info("Shutting down", "signal", sig.String())
	case err := <-errs:
		if err != nil {
			application.Log.Error("Server failed", "error", err)
		}
	}

	application.Close()
}
