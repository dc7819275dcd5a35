package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/piste/internal/simtool"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := simtool.App().RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString("piste-sim: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
