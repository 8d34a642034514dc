package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"circles-flow/internal/abi"
	"circles-flow/internal/config"
	"circles-flow/internal/domain"
	"circles-flow/internal/flowmatrix"
	"circles-flow/internal/pathfinder"
	"circles-flow/internal/storage"
	chstore "circles-flow/internal/storage/clickhouse"
	"circles-flow/internal/storage/migrations"
	pgstore "circles-flow/internal/storage/postgres"
	"circles-flow/internal/tokeninfo"
	"circles-flow/internal/transfer"
)

func main() {
	from := flag.String("from", "", "Sender avatar address")
	to := flag.String("to", "", "Recipient avatar address")
	amount := flag.String("amount", "", "Transfer amount in atto-circles (decimal)")
	data := flag.String("data", "", "Optional hex payload attached to the flow streams")
	wrapped := flag.Bool("wrapped", false, "Let the pathfinder route through wrapped balances")
	fromTokens := flag.String("from-tokens", "", "Comma-separated token addresses the sender may spend")
	toTokens := flag.String("to-tokens", "", "Comma-separated token addresses the recipient accepts")
	pathfinderURL := flag.String("pathfinder-url", "", "Pathfinder endpoint (overrides CIRCLES_PATHFINDER_URL)")
	rpcURL := flag.String("rpc-url", "", "Circles RPC endpoint (overrides CIRCLES_RPC_URL)")
	postgresDSN := flag.String("postgres-dsn", "", "Optional PostgreSQL DSN for the token-info store")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "Optional ClickHouse DSN for the transfer audit log")
	verbose := flag.Bool("verbose", false, "Log each pipeline step")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("load config: %v", err)
	}
	if *pathfinderURL != "" {
		cfg.PathfinderURL = *pathfinderURL
	}
	if *rpcURL != "" {
		cfg.RPCURL = *rpcURL
	}

	req, err := buildRequest(*from, *to, *amount, *data, *wrapped, *fromTokens, *toTokens)
	if err != nil {
		fatal("%v", err)
	}

	pf := pathfinder.NewHTTPClient(cfg.PathfinderURL,
		pathfinder.WithTimeout(cfg.RequestTimeout),
		pathfinder.WithMaxRetries(cfg.MaxRetries),
		pathfinder.WithRetryDelay(cfg.RetryDelay),
	)

	var source tokeninfo.Source = tokeninfo.NewRPCSource(cfg.RPCURL)
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fatal("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			fatal("apply postgres migrations: %v", err)
		}
		source = tokeninfo.NewStoreSource(pgstore.NewTokenInfoStore(pool), source)
	}
	classifier := tokeninfo.NewClassifier(source, nil)

	var records storage.TransferRecordStore
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			fatal("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			fatal("apply clickhouse migrations: %v", err)
		}
		records = chstore.NewTransferRecordStore(conn)
	}

	engine, err := transfer.NewEngine(transfer.Options{
		Pathfinder: pf,
		Classifier: classifier,
		HubAddress: cfg.HubAddress,
		Encoder:    abi.Encoder{},
		Records:    records,
		Verbose:    *verbose,
	})
	if err != nil {
		fatal("create engine: %v", err)
	}

	matrix, calls, err := engine.TransferWithCalls(ctx, req)
	if err != nil {
		fatal("prepare transfer: %v", err)
	}

	printResult(matrix, calls)
}

func buildRequest(from, to, amount, data string, wrapped bool, fromTokens, toTokens string) (transfer.Request, error) {
	if from == "" || to == "" || amount == "" {
		return transfer.Request{}, fmt.Errorf("--from, --to and --amount are required")
	}

	fromAddr, err := domain.ParseAddress(from)
	if err != nil {
		return transfer.Request{}, fmt.Errorf("--from: %w", err)
	}
	toAddr, err := domain.ParseAddress(to)
	if err != nil {
		return transfer.Request{}, fmt.Errorf("--to: %w", err)
	}

	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return transfer.Request{}, fmt.Errorf("--amount: %q is not a decimal integer", amount)
	}

	req := transfer.Request{
		From:               fromAddr,
		To:                 toAddr,
		Amount:             value,
		UseWrappedBalances: wrapped,
	}

	if data != "" {
		payload, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
		if err != nil {
			return transfer.Request{}, fmt.Errorf("--data: %w", err)
		}
		req.Data = payload
	}

	constraints, err := parseConstraints(fromTokens, toTokens)
	if err != nil {
		return transfer.Request{}, err
	}
	req.Constraints = constraints

	return req, nil
}

func parseConstraints(fromTokens, toTokens string) (*domain.PathConstraints, error) {
	if fromTokens == "" && toTokens == "" {
		return nil, nil
	}

	var c domain.PathConstraints
	var err error
	if c.FromTokens, err = parseAddressList(fromTokens); err != nil {
		return nil, fmt.Errorf("--from-tokens: %w", err)
	}
	if c.ToTokens, err = parseAddressList(toTokens); err != nil {
		return nil, fmt.Errorf("--to-tokens: %w", err)
	}
	return &c, nil
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

func printResult(matrix *domain.FlowMatrix, calls []domain.Call) {
	type callOut struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	}

	out := struct {
		FlowMatrix flowmatrix.ABIView `json:"flowMatrix"`
		Total      string             `json:"total"`
		Calls      []callOut          `json:"calls"`
	}{
		FlowMatrix: flowmatrix.View(matrix),
		Total:      matrix.TerminalSum().String(),
	}

	for _, c := range calls {
		out.Calls = append(out.Calls, callOut{
			To:    c.To.String(),
			Data:  "0x" + hex.EncodeToString(c.Data),
			Value: c.Value.String(),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatal("encode output: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
