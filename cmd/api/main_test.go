// Package main contains integration tests for the API server's
// lifecycle: signal handling and graceful shutdown.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

// TestGracefulShutdown_SignalHandling verifies the startup and shutdown
// log sequence around a clean Shutdown call.
func TestGracefulShutdown_SignalHandling(t *testing.T) {
	addr := freeAddr(t)

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverStarted := make(chan struct{})
	serverStopped := make(chan struct{})

	go func() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			t.Errorf("failed to listen: %v", err)
			close(serverStarted)
			close(serverStopped)
			return
		}
		logger.Info("starting server", "addr", addr)
		close(serverStarted)
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
		close(serverStopped)
	}()

	select {
	case <-serverStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("server failed to start in time")
	}
	time.Sleep(50 * time.Millisecond)

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")

	select {
	case <-serverStopped:
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}

	logs := logBuf.String()
	startIdx := strings.Index(logs, "starting server")
	shutdownIdx := strings.Index(logs, "shutting down server")
	stoppedIdx := strings.Index(logs, "server stopped")

	if startIdx == -1 {
		t.Error("expected 'starting server' log message")
	}
	if shutdownIdx == -1 {
		t.Error("expected 'shutting down server' log message")
	}
	if stoppedIdx == -1 {
		t.Error("expected 'server stopped' log message")
	}
	if startIdx > shutdownIdx {
		t.Error("expected 'starting server' to come before 'shutting down server'")
	}
	if shutdownIdx > stoppedIdx {
		t.Error("expected 'shutting down server' to come before 'server stopped'")
	}
}

// TestGracefulShutdown_InFlightRequests verifies that a long-running
// batch request completes before shutdown finishes. Batch recompute
// requests can take a while on a large population, so this matters.
func TestGracefulShutdown_InFlightRequests(t *testing.T) {
	addr := freeAddr(t)

	var mu sync.Mutex
	var requestStarted bool
	var requestCompleted bool
	handlerStarted := make(chan struct{})
	handlerCanContinue := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/scores/recalculate", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestStarted = true
		mu.Unlock()
		close(handlerStarted)

		// Block until released, standing in for a slow batch run
		<-handlerCanContinue

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"totalPeople":100,"processedPeople":100}`))

		mu.Lock()
		requestCompleted = true
		mu.Unlock()
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverStarted := make(chan struct{})
	serverStopped := make(chan struct{})

	go func() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			t.Errorf("failed to listen: %v", err)
			close(serverStarted)
			close(serverStopped)
			return
		}
		close(serverStarted)
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
		close(serverStopped)
	}()

	select {
	case <-serverStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("server failed to start in time")
	}
	time.Sleep(50 * time.Millisecond)

	requestDone := make(chan struct{})
	var response *http.Response
	go func() {
		resp, err := http.Post("http://"+addr+"/scores/recalculate", "application/json", nil)
		if err != nil {
			t.Errorf("request error: %v", err)
		}
		response = resp
		close(requestDone)
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler failed to start in time")
	}

	// Shutdown begins while the batch is still running
	shutdownDone := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			t.Errorf("shutdown error: %v", err)
		}
		close(shutdownDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(handlerCanContinue)

	select {
	case <-requestDone:
	case <-time.After(5 * time.Second):
		t.Fatal("request failed to complete in time")
	}
	select {
	case <-shutdownDone:
	case <-time.After(15 * time.Second):
		t.Fatal("shutdown failed to complete in time")
	}

	mu.Lock()
	if !requestStarted {
		t.Error("expected request to have started")
	}
	if !requestCompleted {
		t.Error("expected request to have completed")
	}
	mu.Unlock()

	if response != nil {
		defer response.Body.Close()
		if response.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", response.StatusCode)
		}
		body, _ := io.ReadAll(response.Body)
		var result map[string]int
		if err := json.Unmarshal(body, &result); err != nil {
			t.Errorf("failed to parse response: %v", err)
		}
		if result["processedPeople"] != 100 {
			t.Errorf("expected processedPeople 100, got %d", result["processedPeople"])
		}
	}
}

// TestSignalNotify_SIGINT tests that signal.Notify properly catches SIGINT.
func TestSignalNotify_SIGINT(t *testing.T) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		time.Sleep(50 * time.Millisecond)
		syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	}()

	select {
	case sig := <-quit:
		if sig != syscall.SIGINT {
			t.Errorf("expected SIGINT, got %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Error("did not receive SIGINT in time")
	}
}

// TestSignalNotify_SIGTERM tests that signal.Notify properly catches SIGTERM.
func TestSignalNotify_SIGTERM(t *testing.T) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		time.Sleep(50 * time.Millisecond)
		syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	}()

	select {
	case sig := <-quit:
		if sig != syscall.SIGTERM {
			t.Errorf("expected SIGTERM, got %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Error("did not receive SIGTERM in time")
	}
}
