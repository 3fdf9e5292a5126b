package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"dailycode/internal/cli/command"
	"dailycode/internal/cli/config"
	httpclient "dailycode/internal/cli/http"
	"dailycode/internal/cli/repl"
	"dailycode/internal/cli/state"
)

const defaultConfigPath = "configs/verify_cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 30s)")
	token := flag.String("token", "", "Override access token")
	userID := flag.String("user", "", "Send X-User-Id (trusted gateway mode)")
	statePath := flag.String("state", "", "Override token state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	tokenState, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load token state failed: %v\n", err)
		os.Exit(1)
	}
	if *token != "" {
		tokenState.AccessToken = *token
	}
	if tokenState.UserID == "" {
		tokenState.UserID = cfg.UserID
	}
	if *userID != "" {
		tokenState.UserID = *userID
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() (string, string) {
		return tokenState.AccessToken, tokenState.UserID
	})
	session := repl.New(client, command.Registry(), &tokenState, cfg.StatePath, cfg.HistoryFile, cfg.PrettyJSON != nil && *cfg.PrettyJSON)
	if err := session.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
