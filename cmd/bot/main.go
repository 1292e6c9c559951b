package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/critical-mass/internal/bot"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	difficulty := flag.String("difficulty", "easy", "bot difficulty (easiest, easy, medium, medium-sharp, hard, hard-gonnx)")
	players := flag.Int("players", 2, "number of bot players (2-7)")
	width := flag.Int("width", 6, "board width")
	height := flag.Int("height", 5, "board height")
	turnSeconds := flag.Int("turn-seconds", 30, "turn clock in seconds (0 = untimed)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	orch := bot.NewOrchestrator(*url, *difficulty, *players, *width, *height, *turnSeconds)
	if err := orch.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bot orchestrator failed")
	}
	log.Info().Msg("Bot game completed successfully")
}
