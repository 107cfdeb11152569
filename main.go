package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sheetstruct/sheetstruct/portal"
	"github.com/sheetstruct/sheetstruct/refs"
	"github.com/sheetstruct/sheetstruct/structured"
)

type output struct {
	Data     map[string][]map[string]any   `json:"data"`
	Warnings map[string][]structured.Issue `json:"warnings,omitempty"`
	Errors   map[string][]structured.Issue `json:"errors,omitempty"`
	Counters refs.Counters                 `json:"counters"`
}

func main() {
	_ = godotenv.Load()
	input := getEnv("SHEETSTRUCT_INPUT", "")
	server := getEnv("SHEETSTRUCT_SERVER", "")
	apikey := getEnv("SHEETSTRUCT_APIKEY", "")
	order := getEnv("SHEETSTRUCT_ORDER", "")
	prune := getEnv("SHEETSTRUCT_PRUNE", "true")
	level := getEnv("SHEETSTRUCT_LOG", "info")

	if err := setupLogging(level); err != nil {
		slog.Error("could not init logging", "err", err)
		return
	}

	if input == "" {
		slog.Error("missing required config option SHEETSTRUCT_INPUT")
		return
	}

	bs, err := os.ReadFile(input)
	if err != nil {
		slog.Error("could not read input", "file", input, "err", err)
		return
	}
	var tables []structured.Table
	if err := json.Unmarshal(bs, &tables); err != nil {
		slog.Error("could not parse input", "file", input, "err", err)
		return
	}

	var p portal.Portal
	if server != "" {
		client, err := portal.NewClient(apikey, server)
		if err != nil {
			slog.Error("could not init portal client", "err", err)
			return
		}
		p = client
	}

	opts := structured.Options{Prune: prune == "true", Strategy: refs.PatternStrategy{}}
	if order != "" {
		opts.Order = strings.Split(order, ",")
	}

	ctx := context.Background()
	ds := structured.NewDataSet(p, opts)
	if err := ds.AddTables(ctx, tables); err != nil {
		slog.Warn("some tables were skipped", "err", err)
	}
	if err := ds.Validate(ctx); err != nil {
		slog.Error("validation pass failed", "err", err)
		return
	}

	out := output{
		Data:     ds.Data,
		Warnings: ds.Warnings(),
		Errors:   ds.Errors(),
		Counters: ds.Counters(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("could not write output", "err", err)
	}
}

func setupLogging(level string) error {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(level))
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
	return err
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
