package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baobao-chat/baochat/internal/session"
	"github.com/baobao-chat/baochat/internal/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewStore()
	client, err := NewClient(ClientConfig{BaseURL: server.URL, Credentials: store})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, store, server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestConcurrentRenewalSharesOneRefresh(t *testing.T) {
	const workers = 8

	var (
		refreshCalls int32
		firstTries   int32
		allFailed    = make(chan struct{})
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		// Hold the renewal open until every worker has taken its
		// first 401, so all of them join this one flight.
		<-allFailed
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&refreshCalls, 1)
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "tok-renewed",
			"user":        map[string]string{"_id": "u1", "user_name": "alice"},
		})
	})
	mux.HandleFunc("/api/home/conversations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-renewed" {
			if n := atomic.AddInt32(&firstTries, 1); n == workers {
				close(allFailed)
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": []any{}})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-stale", &types.User{ID: "u1", UserName: "alice"})

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Conversations(context.Background(), "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("request failed: %v", err)
		}
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("refresh endpoint called %d times, want 1", got)
	}
	if got := atomic.LoadInt32(&firstTries); got != workers {
		t.Errorf("saw %d stale-token requests, want %d", got, workers)
	}
	if store.Token() != "tok-renewed" {
		t.Errorf("store token = %q, want renewed token", store.Token())
	}
}

func TestAuthEndpointsAreNotIntercepted(t *testing.T) {
	var refreshCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no refresh cookie"})
	})

	client, _, _ := newTestClient(t, mux)

	if _, err := client.SignIn(context.Background(), "alice", "wrong"); err == nil {
		t.Fatal("expected sign-in failure")
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 0 {
		t.Errorf("failed sign-in triggered %d renewals, want 0", got)
	}

	// A failing renewal must not renew itself.
	if _, err := client.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("refresh endpoint called %d times, want exactly 1", got)
	}
}

func TestRefreshProofSurvivesRestart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     "refresh_token",
			Value:    "r-1",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   3600,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "tok-1",
			"user":        map[string]string{"_id": "u1", "user_name": "alice"},
		})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("refresh_token")
		if err != nil || cookie.Value != "r-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no refresh cookie"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "tok-2",
			"user":        map[string]string{"_id": "u1", "user_name": "alice"},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cookiePath := filepath.Join(t.TempDir(), "cookies.json")

	first, err := NewClient(ClientConfig{
		BaseURL:     server.URL,
		Credentials: session.NewStore(),
		CookiePath:  cookiePath,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := first.SignIn(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	// The file carries the refresh cookie, never the access token.
	data, err := os.ReadFile(cookiePath)
	if err != nil {
		t.Fatalf("read cookie file: %v", err)
	}
	if !strings.Contains(string(data), "r-1") {
		t.Error("refresh cookie missing from cookie file")
	}
	if strings.Contains(string(data), "tok-1") {
		t.Error("access token leaked into cookie file")
	}

	// A fresh process restores the jar from disk and renews without a
	// password.
	store := session.NewStore()
	restarted, err := NewClient(ClientConfig{
		BaseURL:     server.URL,
		Credentials: store,
		CookiePath:  cookiePath,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	auth, err := restarted.Refresh(context.Background())
	if err != nil {
		t.Fatalf("renewal after restart failed: %v", err)
	}
	if auth.AccessToken != "tok-2" {
		t.Errorf("renewed token = %q, want tok-2", auth.AccessToken)
	}
}

func TestReplayHappensExactlyOnce(t *testing.T) {
	var dataCalls, refreshCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "tok-renewed",
			"user":        map[string]string{"_id": "u1"},
		})
	})
	mux.HandleFunc("/api/home/conversations", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "jwt expired"})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-stale", &types.User{ID: "u1"})

	_, err := client.Conversations(context.Background(), "")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if got := atomic.LoadInt32(&dataCalls); got != 2 {
		t.Errorf("data endpoint called %d times, want 2 (original + one replay)", got)
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("refresh endpoint called %d times, want 1", got)
	}
}

func TestRenewalFailureClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "refresh token expired"})
	})
	mux.HandleFunc("/api/home/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "jwt expired"})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-stale", &types.User{ID: "u1"})

	_, err := client.Conversations(context.Background(), "")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if store.Authenticated() {
		t.Error("session still authenticated after failed renewal")
	}
}

func TestForbiddenAfterReplayIsPermissionError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "tok-renewed",
			"user":        map[string]string{"_id": "u1"},
		})
	})
	mux.HandleFunc("/api/home/conversations/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a participant"})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-1", &types.User{ID: "u1"})

	_, err := client.Conversation(context.Background(), "c99")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsForbidden(err) {
		t.Errorf("IsForbidden = false for %v", err)
	}
	if errors.Is(err, ErrAuthExpired) {
		t.Errorf("403 on a valid credential reported as expired session: %v", err)
	}
}

func TestErrorDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/home/conversations/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "conversation not found",
			"code":  "NOT_FOUND",
		})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-1", &types.User{ID: "u1"})

	_, err := client.Conversation(context.Background(), "gone")
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound = false for %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v does not wrap *Error", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.Message != "conversation not found" {
		t.Errorf("decoded error = %+v", apiErr)
	}
}

func TestMessagesPaginationQuery(t *testing.T) {
	var gotQuery map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/home/messages/c1", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"page":   r.URL.Query().Get("page"),
			"limit":  r.URL.Query().Get("limit"),
			"before": r.URL.Query().Get("before"),
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": []any{}})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-1", &types.User{ID: "u1"})

	_, err := client.Messages(context.Background(), "c1", MessagesOptions{
		Page:     2,
		PageSize: 30,
		BeforeID: "m100",
	})
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	want := map[string]string{"page": "2", "limit": "30", "before": "m100"}
	for key, value := range want {
		if gotQuery[key] != value {
			t.Errorf("query %s = %q, want %q", key, gotQuery[key], value)
		}
	}
}

func TestSendMessageReturnsServerCopy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/home/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["conversationId"] != "c1" || body["content"] != "hello" {
			t.Errorf("unexpected send body: %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"data": map[string]any{
				"_id":            "m42",
				"conversationId": "c1",
				"senderId":       "u1",
				"content":        "hello",
			},
		})
	})

	client, store, _ := newTestClient(t, mux)
	store.Set("tok-1", &types.User{ID: "u1"})

	message, err := client.SendMessage(context.Background(), "c1", "hello", "", "")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if message.ID != "m42" || message.Sender.ID != "u1" {
		t.Errorf("server copy = %+v", message)
	}
}
