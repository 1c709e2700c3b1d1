// Command defrumours scrapes the Transfermarkt rumours listing for defenders
// and writes the results as JSON and email-ready HTML.
//
// Usage:
//
//	defrumours run -competition L1 -season 2025 -enrich
//	defrumours watch -every 6h
//	defrumours serve -listen :8080
//	defrumours history -limit 10
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
