package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/OCAP2/markerpack/internal/dispatcher"
)

const maxLineSize = 1 << 20

// request is one stdin line.
type request struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Command string          `json:"command"`
	Args    []string        `json:"args"`
}

// response is one stdout line, written for every request in order.
type response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	OK     bool            `json:"ok"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (a *app) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	a.logger.Info("Serving commands on stdin")
	return serveLines(ctx, a.dispatcher, in, out, a.logger)
}

// serveLines dispatches JSON requests from in until EOF or ctx is done.
func serveLines(ctx context.Context, d *dispatcher.Dispatcher, in io.Reader, out io.Writer, logger *slog.Logger) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- bytes.Clone(line):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			resp := handleLine(d, line)
			if err := enc.Encode(resp); err != nil {
				logger.Error("Failed to encode response", "error", err)
				if err := enc.Encode(response{ID: resp.ID, Error: fmt.Sprintf("encoding result: %v", err)}); err != nil {
					return fmt.Errorf("writing response: %w", err)
				}
			}
		}
	}
}

func handleLine(d *dispatcher.Dispatcher, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	result, err := d.Dispatch(dispatcher.Event{
		Command:   req.Command,
		Args:      req.Args,
		Timestamp: time.Now(),
	})
	if err != nil {
		return response{ID: req.ID, Error: err.Error()}
	}
	return response{ID: req.ID, OK: true, Result: result}
}
