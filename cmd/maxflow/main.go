package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"circles-flow/internal/config"
	"circles-flow/internal/domain"
	"circles-flow/internal/pathfinder"
)

func main() {
	from := flag.String("from", "", "Sender avatar address")
	to := flag.String("to", "", "Recipient avatar address")
	fromTokens := flag.String("from-tokens", "", "Comma-separated token addresses the sender may spend")
	toTokens := flag.String("to-tokens", "", "Comma-separated token addresses the recipient accepts")
	pathfinderURL := flag.String("pathfinder-url", "", "Pathfinder endpoint (overrides CIRCLES_PATHFINDER_URL)")
	flag.Parse()

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "Error: --from and --to are required")
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("load config: %v", err)
	}
	if *pathfinderURL != "" {
		cfg.PathfinderURL = *pathfinderURL
	}

	fromAddr, err := domain.ParseAddress(*from)
	if err != nil {
		fatal("--from: %v", err)
	}
	toAddr, err := domain.ParseAddress(*to)
	if err != nil {
		fatal("--to: %v", err)
	}

	var constraints *domain.PathConstraints
	if *fromTokens != "" || *toTokens != "" {
		var c domain.PathConstraints
		if c.FromTokens, err = parseAddressList(*fromTokens); err != nil {
			fatal("--from-tokens: %v", err)
		}
		if c.ToTokens, err = parseAddressList(*toTokens); err != nil {
			fatal("--to-tokens: %v", err)
		}
		constraints = &c
	}

	client := pathfinder.NewHTTPClient(cfg.PathfinderURL,
		pathfinder.WithTimeout(cfg.RequestTimeout),
		pathfinder.WithMaxRetries(cfg.MaxRetries),
		pathfinder.WithRetryDelay(cfg.RetryDelay),
	)

	flow, err := client.FindMaxFlow(context.Background(), fromAddr, toAddr, constraints)
	if err != nil {
		fatal("find max flow: %v", err)
	}

	fmt.Println(flow.String())
}

func parseAddressList(s string) ([]domain.Address, error) {
	if s == "" {
		return nil, nil
	}
	var out []domain.Address
	for _, part := range strings.Split(s, ",") {
		addr, err := domain.ParseAddress(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
