package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	corechess "github.com/park285/chess-bridge/internal/chess"
	"github.com/park285/chess-bridge/internal/notify"
	"github.com/park285/chess-bridge/pkg/bridgedto"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func main() {
	fen := flag.String("fen", startFEN, "position to search")
	notifyURL := flag.String("notify", os.Getenv("NOTIFY_URL"), "send a sample game-over event to this url")
	notifyMode := flag.String("mode", "http", "notify mode for -notify: http, ws or auto")
	flag.Parse()

	path, err := corechess.FindBinary(os.Getenv("STOCKFISH_PATH"))
	if err != nil {
		log.Fatalf("engine lookup: %v", err)
	}
	log.Printf("engine binary: %s", path)

	engine, err := corechess.NewEngine(path, 1, nil)
	if err != nil {
		log.Fatalf("engine init: %v", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	start := time.Now()
	mv, err := engine.BestMove(ctx, *fen)
	if err != nil {
		log.Fatalf("search error: %v", err)
	}
	fmt.Printf("bestmove %q in %s (%s)\n", mv, time.Since(start).Round(time.Millisecond), corechess.GoCommand())

	if *notifyURL == "" {
		return
	}
	mode, err := notify.ParseMode(*notifyMode)
	if err != nil {
		log.Fatalf("notify mode: %v", err)
	}
	n, err := notify.New(notify.Options{Mode: mode, URL: *notifyURL, Timeout: 5 * time.Second, Retry: 1})
	if err != nil {
		log.Fatalf("notify init: %v", err)
	}
	defer notify.Close(n)
	err = n.GameOver(ctx, bridgedto.GameOverEvent{
		SessionUUID: "enginecheck",
		Winner:      "white",
		Method:      "checkmate",
		EngineColor: "white",
		Moves:       []string{mv},
		EndedAt:     time.Now(),
	})
	if err != nil {
		log.Printf("notify error: %v", err)
		return
	}
	log.Printf("notify ok: %s %s", mode, *notifyURL)
}
