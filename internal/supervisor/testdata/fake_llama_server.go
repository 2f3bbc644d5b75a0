package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Accepts the llama-server flags used by the supervisor. Behaviour is driven
// by FAKE_* environment variables so tests can script failures.
func main() {
	var model, alias, host, port string
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&alias, "alias", "", "model alias")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.String("c", "", "context size")
	flag.String("t", "", "threads")
	flag.String("ngl", "", "gpu layers")
	flag.String("b", "", "batch size")
	flag.String("seed", "", "seed")
	flag.String("rope-freq-base", "", "rope base")
	flag.String("rope-freq-scale", "", "rope scale")
	flag.String("mmproj", "", "mmproj path")
	flag.Parse()

	if p := os.Getenv("FAKE_ARGS_FILE"); p != "" {
		b, _ := json.Marshal(os.Args[1:])
		_ = os.WriteFile(p, b, 0o644)
	}
	if p := os.Getenv("FAKE_PID_FILE"); p != "" {
		_ = os.WriteFile(p, []byte(strconv.Itoa(os.Getpid())), 0o644)
	}
	fmt.Printf("fake llama-server model=%s alias=%s\n", model, alias)

	if code := os.Getenv("FAKE_EXIT_EARLY"); code != "" {
		fmt.Println("loading model")
		fmt.Fprintln(os.Stderr, "error: failed to load model '"+model+"'")
		n, _ := strconv.Atoi(code)
		os.Exit(n)
	}
	stopSignals := []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	if os.Getenv("FAKE_IGNORE_SIGTERM") == "1" {
		signal.Ignore(syscall.SIGTERM)
		stopSignals = stopSignals[:1]
	}

	readyAt := time.Now()
	if ms, _ := strconv.Atoi(os.Getenv("FAKE_READY_DELAY_MS")); ms > 0 {
		readyAt = readyAt.Add(time.Duration(ms) * time.Millisecond)
	}
	replyDelay, _ := strconv.Atoi(os.Getenv("FAKE_REPLY_DELAY_MS"))
	reply := os.Getenv("FAKE_REPLY")
	if reply == "" {
		reply = "pong"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if time.Now().Before(readyAt) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"Loading model"}}`))
			return
		}
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if replyDelay > 0 {
			select {
			case <-time.After(time.Duration(replyDelay) * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			words := strings.SplitAfter(reply, " ")
			for _, word := range words {
				b, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{"delta": map[string]any{"content": word}}}})
				fmt.Fprintf(w, "data: %s\n\n", b)
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": reply}}},
		})
	})

	l, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, stopSignals...)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
