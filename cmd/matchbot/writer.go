package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"matchbot/internal/telemetry"
)

type writerOptions struct {
	printOnly  bool
	stdout     bool
	eventsOnly bool
	logFile    string
}

// newWriters builds the telemetry writer from flags and env vars.
// GREPTIMEDB_ENDPOINT (host:port) enables GreptimeDB unless printOnly is
// set; GREPTIMEDB_DATABASE defaults to "public". The returned cleanup
// closes any file opened.
func newWriters(opts writerOptions, log *slog.Logger, extra ...telemetry.Writer) (telemetry.Writer, func(), error) {
	cleanup := func() {}
	var ws []telemetry.Writer

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" && !opts.printOnly {
		host, port, err := splitEndpoint(endpoint)
		if err != nil {
			return nil, nil, err
		}
		db := os.Getenv("GREPTIMEDB_DATABASE")
		if db == "" {
			db = "public"
		}
		gw, err := telemetry.NewGreptimeDBWriter(host, port, db, log)
		if err != nil {
			return nil, nil, fmt.Errorf("greptime writer: %w", err)
		}
		ws = append(ws, gw)
	} else if opts.stdout {
		sw := telemetry.NewJSONStdoutWriter()
		sw.EventsOnly = opts.eventsOnly
		ws = append(ws, sw)
	}

	if opts.logFile != "" {
		fw, err := telemetry.NewFileWriter(opts.logFile)
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		ws = append(ws, fw)
		cleanup = func() { fw.Close() }
	}
	ws = append(ws, extra...)

	switch len(ws) {
	case 0:
		return telemetry.Discard{}, cleanup, nil
	case 1:
		return ws[0], cleanup, nil
	}
	return telemetry.NewMultiWriter(ws...), cleanup, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("GREPTIMEDB_ENDPOINT: %w", err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("GREPTIMEDB_ENDPOINT port: %w", err)
	}
	return host, port, nil
}
