package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"
)

// ChatStream posts a streaming request and yields content fragments in
// arrival order. The request is sent when iteration begins. Breaking out of
// the loop closes the connection. The returned sequence can be ranged over
// once; a second pass yields ErrStreamConsumed.
func (c *Client) ChatStream(ctx context.Context, system, user string, maxTokens int, opts ...CallOption) iter.Seq2[string, error] {
	body := c.buildRequest(system, user, maxTokens, true, opts)
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}
		start := time.Now()
		outcome := c.stream(ctx, body, yield)
		observe("stream", outcome, start)
	}
}

// stream runs one SSE exchange and returns the metrics outcome label.
func (c *Client) stream(parent context.Context, body chatRequest, yield func(string, error) bool) string {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// idle timeout: the timer is pushed back every time a line arrives
	var idle *time.Timer
	var timedOut atomic.Bool
	if c.timeout > 0 {
		idle = time.AfterFunc(c.timeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer idle.Stop()
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		if timedOut.Load() {
			err = fmt.Errorf("chat stream idle for %s: %w", c.timeout, context.DeadlineExceeded)
		}
		yield("", err)
		return outcomeOf(err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if idle != nil {
			idle.Reset(c.timeout)
		}
		line := strings.TrimSpace(sc.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return "ok"
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.log.Debug().Err(err).Str("data", truncateRunes(data, 200)).Msg("skip malformed stream chunk")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		ch := chunk.Choices[0]
		piece := ch.Delta.Content
		if piece == "" {
			// some servers send the whole message on the final frame
			piece = ch.Message.Content
		}
		if piece == "" {
			continue
		}
		if !yield(piece, nil) {
			return "ok"
		}
	}
	if err := sc.Err(); err != nil {
		switch {
		case timedOut.Load():
			err = fmt.Errorf("chat stream idle for %s: %w", c.timeout, context.DeadlineExceeded)
		case errors.Is(parent.Err(), context.Canceled), errors.Is(parent.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("chat stream: %w", parent.Err())
		default:
			err = fmt.Errorf("read chat stream: %w", err)
		}
		yield("", err)
		return "transport_error"
	}
	return "ok"
}
