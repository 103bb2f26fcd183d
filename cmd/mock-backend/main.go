// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command mock-backend serves the auth API in memory for local development.
//
// Usage:
//
//	mock-backend -addr :8080 -user ada@example.com:Secret1:admin -access-ttl 30s
//
// Point warden at it with WARDEN_BASE_URL=http://localhost:8080/api.
// A short -access-ttl exercises the refresh path quickly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jeranaias/warden/internal/logging"
	"github.com/jeranaias/warden/internal/mockapi"
)

type userFlags []string

func (u *userFlags) String() string     { return strings.Join(*u, ",") }
func (u *userFlags) Set(v string) error { *u = append(*u, v); return nil }

func main() {
	var users userFlags
	addr := flag.String("addr", ":8080", "listen address")
	ttl := flag.Duration("access-ttl", mockapi.DefaultAccessTTL, "access token lifetime")
	level := flag.String("log-level", "info", "log level")
	flag.Var(&users, "user", "seed user as email:password[:role] (repeatable)")
	flag.Parse()

	log := logging.New(logging.Options{Level: *level})

	srv := mockapi.New(mockapi.WithAccessTTL(*ttl))
	if len(users) == 0 {
		users = append(users, "demo@example.com:Demo123:user")
	}
	for _, spec := range users {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 {
			fmt.Fprintf(os.Stderr, "invalid -user %q: want email:password[:role]\n", spec)
			os.Exit(2)
		}
		role := ""
		if len(parts) == 3 {
			role = parts[2]
		}
		if _, err := srv.AddUser(parts[0], parts[1], role); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %s: %v\n", parts[0], err)
			os.Exit(1)
		}
		log.Info("USER_SEEDED", "email", parts[0])
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("MOCK_BACKEND_LISTENING", "addr", *addr, "access_ttl", *ttl)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("MOCK_BACKEND_FAILED", "error", err)
		os.Exit(1)
	}
}
