package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	if err := newRootCmd(httpClient).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
