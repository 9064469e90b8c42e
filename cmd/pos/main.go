// pos is the cashier terminal. With arguments it runs one command and prints
// JSON; without, it starts the interactive register.
//
// Usage: go run ./cmd/pos [command args...]
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"inventory-invoicing/internal/adapters/cli"
	"inventory-invoicing/internal/adapters/repl"
	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, backend, err := app.FromConfig(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer backend.Close()

	reader := bufio.NewReader(os.Stdin)
	session, err := login(ctx, svc, reader, cfg, backend.InMemory)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, svc, *session, os.Args[1:], os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := repl.Run(ctx, svc, *session, reader, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// login authenticates from POS_USERNAME/POS_PASSWORD, falling back to a prompt.
// The in-memory store logs the demo account in without asking.
func login(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, cfg *config.Config, inMemory bool) (*app.UserSession, error) {
	username := os.Getenv("POS_USERNAME")
	password := os.Getenv("POS_PASSWORD")

	if username == "" && inMemory {
		username, password = app.DemoUsername, cfg.SeedPassword
	}
	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		username = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		password = strings.TrimRight(line, "\r\n")
	}

	return svc.AuthenticateUser(ctx, username, password)
}
