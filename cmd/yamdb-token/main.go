// Command yamdb-token issues a bearer token for an existing user. The API does
// not sign tokens itself; operators mint them with JWT_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/config"
	"github.com/Clark-Hu/yamdb/internal/repository"
	"github.com/Clark-Hu/yamdb/internal/store"
)

func main() {
	var (
		username = flag.String("username", "", "user to issue the token for")
		ttl      = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: yamdb-token -username NAME [-ttl 24h]")
		os.Exit(2)
	}
	if err := run(*username, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "yamdb-token: %v\n", err)
		os.Exit(1)
	}
}

func run(username string, ttl time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DBConnTimeoutSecs)*time.Second)
	defer cancel()

	st, err := store.New(ctx, cfg.DBURL, store.Options{MaxConns: 1, StatementCacheCapacity: cfg.DBStatementCache})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	user, err := repository.New(st).Users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("lookup %q: %w", username, err)
	}
	token, err := auth.NewVerifier(cfg.JWTSecret).Sign(user.ID, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}
