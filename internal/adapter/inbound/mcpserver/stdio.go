package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/i2y/apollo-mcp/pkg/shared/mcpjsonrpc"
)

// defaultMaxLineBytes bounds one message. Longer lines are discarded and
// answered with a parse error.
const defaultMaxLineBytes = 10 << 20

// inbound is one line read from stdin.
type inbound struct {
	data    []byte
	tooLong bool
}

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes the
// responses to out, one per line. Every message is handled on its own
// goroutine. It returns nil on EOF after in-flight messages finish, or the
// context error once ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	log := s.logger.With("transport", "stdio")
	log.Info("Serving MCP over stdio")
	limit := s.maxLineBytes

	lines := make(chan inbound)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		reader := bufio.NewReaderSize(in, 64<<10)
		for {
			line, err := readLine(reader, limit)
			if len(line.data) > 0 || line.tooLong {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	write := func(resp any) {
		data, err := json.Marshal(resp)
		if err != nil {
			log.Error("Failed to encode response", slog.Any("error", err))
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := out.Write(append(data, '\n')); err != nil {
			log.Error("Failed to write response", slog.Any("error", err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				wg.Wait()
				err := <-readErr
				if errors.Is(err, io.EOF) {
					log.Info("Stdin closed")
					return nil
				}
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			if line.tooLong {
				log.Warn("Discarded oversized message", slog.Int("limit", limit))
				write(mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeParseError,
					fmt.Sprintf("Parse error: message exceeds %d bytes", limit)))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Error("Recovered panic while handling message", slog.Any("panic", r))
						write(mcpjsonrpc.NewError(requestID(line.data), mcpjsonrpc.CodeInternalError, "Internal error"))
					}
				}()
				if resp := s.HandleMessage(ctx, line.data); resp != nil {
					write(resp)
				}
			}()
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed to its end and reported as tooLong.
func readLine(r *bufio.Reader, limit int) (inbound, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > limit {
				tooLong, buf = true, nil
			}
		}
		if err != nil || !isPrefix {
			if tooLong {
				return inbound{tooLong: true}, err
			}
			return inbound{data: bytes.TrimSpace(buf)}, err
		}
	}
}

// requestID returns the id of a request, or nil when it cannot be read.
func requestID(raw []byte) json.RawMessage {
	var req mcpjsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}
	return req.ID
}
