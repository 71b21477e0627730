package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/kbc-quiz/internal/question"
	"github.com/gokatarajesh/kbc-quiz/internal/question/external"
)

// bankgen writes a question bank file for QUIZ_BANK_PATH from a public trivia API.
func main() {
	var (
		source     = flag.String("source", "opentdb", "Question source: opentdb or trivia-api")
		amount     = flag.Int("amount", 50, "Number of questions to collect")
		difficulty = flag.String("difficulty", "", "Optional difficulty filter: easy, medium or hard")
		out        = flag.String("out", "bank.json", "Output file")
		seed       = flag.Int64("seed", 0, "Seed for answer placement; 0 uses the clock")
		timeout    = flag.Duration("timeout", time.Minute, "Overall fetch timeout")
	)
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var provider external.Provider
	switch *source {
	case "opentdb":
		provider = external.NewOpenTDBClient("", *difficulty, nil)
	case "trivia-api":
		provider = external.NewTriviaAPIClient("", os.Getenv("TRIVIA_API_KEY"), *difficulty, nil)
	default:
		log.Fatal().Str("source", *source).Msg("unknown source. Use: opentdb or trivia-api")
	}
	if *amount <= 0 {
		log.Fatal().Int("amount", *amount).Msg("amount must be positive")
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	qs, err := external.BuildBank(ctx, provider, *amount, rand.New(rand.NewSource(*seed)), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build bank")
	}
	if _, err := question.NewBank(qs); err != nil {
		log.Fatal().Err(err).Msg("generated bank is invalid")
	}

	data, err := json.MarshalIndent(qs, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode bank")
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		log.Fatal().Err(err).Str("out", *out).Msg("write bank")
	}
	log.Info().Str("source", provider.Name()).Int("questions", len(qs)).Str("out", *out).Msg("question bank written")
}
