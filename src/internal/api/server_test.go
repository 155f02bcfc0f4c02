package api

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nutrishaweb/src/internal/domain"
	"nutrishaweb/src/internal/logging"
)

const (
	indexHTML  = "<!doctype html><title>NutrishaAI</title>"
	signinHTML = "<!doctype html><form id=\"signin\"></form>\n"
	signupHTML = "<!doctype html><form id=\"signup\"></form>\n"
	secretText = "outside the root"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

type fixture struct {
	api    *Api
	root   string
	outer  string
	logBuf *bytes.Buffer
}

func newFixture(t *testing.T, liveReload bool) *fixture {
	t.Helper()

	outer := t.TempDir()
	root := filepath.Join(outer, "site")
	files := map[string]string{
		"index.html":   indexHTML,
		"signin.html":  signinHTML,
		"signup.html":  signupHTML,
		"css/site.css": "body { margin: 0 }",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(outer, "secret.txt"), []byte(secretText), 0644); err != nil {
		t.Fatal(err)
	}

	logBuf := &bytes.Buffer{}
	ctx := &domain.Context{
		Config: domain.Config{
			Host:       "127.0.0.1",
			Port:       0,
			Root:       root,
			LiveReload: liveReload,
		},
		Log: logging.New(logBuf, false),
	}

	a, err := Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	return &fixture{api: a, root: root, outer: outer, logBuf: logBuf}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.api.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	for k, want := range corsHeaders {
		if got := h.Values(k); len(got) != 1 || got[0] != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}
}

func TestCORSOnEveryResponse(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/signin.html", http.StatusOK},
		{http.MethodHead, "/signup.html", http.StatusOK},
		{http.MethodGet, "/css/", http.StatusOK},
		{http.MethodGet, "/css", http.StatusMovedPermanently},
		{http.MethodGet, "/does-not-exist.xyz", http.StatusNotFound},
		{http.MethodGet, "/../secret.txt", http.StatusBadRequest},
		{http.MethodPost, "/signin.html", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/anything", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := f.do(tt.method, tt.target)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			assertCORS(t, rec.Header())
		})
	}
}

func TestOptionsPreflight(t *testing.T) {
	f := newFixture(t, false)

	for _, target := range []string{"/", "/signin.html", "/missing/path.json", "/../etc/passwd"} {
		t.Run(target, func(t *testing.T) {
			rec := f.do(http.MethodOptions, target)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("body = %q, want empty", rec.Body.String())
			}
			assertCORS(t, rec.Header())
		})
	}
}

func TestServeIndex(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != indexHTML {
		t.Errorf("body = %q, want %q", got, indexHTML)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestServePages(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		target string
		want   string
		ctype  string
	}{
		{"/signin.html", signinHTML, "text/html"},
		{"/signup.html", signupHTML, "text/html"},
		{"/css/site.css", "body { margin: 0 }", "text/css"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !bytes.Equal(rec.Body.Bytes(), []byte(tt.want)) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.ctype) {
				t.Errorf("Content-Type = %q, want %s", ct, tt.ctype)
			}
		})
	}
}

func TestHeadHasNoBody(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodHead, "/signin.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(len(signinHTML)) {
		t.Errorf("Content-Length = %q, want %d", got, len(signinHTML))
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/does-not-exist.xyz")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	assertCORS(t, rec.Header())
}

func TestDirectoryListing(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/css/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "site.css") {
		t.Errorf("listing does not mention site.css: %q", rec.Body.String())
	}
}

func TestPathTraversal(t *testing.T) {
	f := newFixture(t, false)

	targets := []string{
		"/../secret.txt",
		"/css/../../secret.txt",
		"/%2e%2e/secret.txt",
		"/css/%2E%2E/%2E%2E/secret.txt",
		"/..%2fsecret.txt",
	}
	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			rec := f.do(http.MethodGet, target)
			if rec.Code < 400 || rec.Code >= 500 {
				t.Errorf("status = %d, want 4xx", rec.Code)
			}
			if strings.Contains(rec.Body.String(), secretText) {
				t.Errorf("served content from outside the root")
			}
			assertCORS(t, rec.Header())
		})
	}
}

func TestSymlinkEscape(t *testing.T) {
	f := newFixture(t, false)

	link := filepath.Join(f.root, "leak.txt")
	if err := os.Symlink(filepath.Join(f.outer, "secret.txt"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	rec := f.do(http.MethodGet, "/leak.txt")
	if rec.Code == http.StatusOK || strings.Contains(rec.Body.String(), secretText) {
		t.Errorf("symlink escaped the root: status %d body %q", rec.Code, rec.Body.String())
	}
	assertCORS(t, rec.Header())
}

func TestPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	f := newFixture(t, false)

	p := filepath.Join(f.root, "private.html")
	if err := os.WriteFile(p, []byte("nope"), 0000); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodGet, "/private.html")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	assertCORS(t, rec.Header())

	// The next request is unaffected.
	if rec := f.do(http.MethodGet, "/signin.html"); rec.Code != http.StatusOK {
		t.Errorf("follow-up status = %d, want 200", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/signin.html")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, HEAD, OPTIONS" {
		t.Errorf("Allow = %q", got)
	}
	assertCORS(t, rec.Header())
}

func TestAccessLog(t *testing.T) {
	f := newFixture(t, false)

	f.do(http.MethodGet, "/signin.html")
	f.do(http.MethodGet, "/missing.html")
	f.do(http.MethodOptions, "/signin.html")

	lines := strings.Split(strings.TrimSpace(f.logBuf.String()), "\n")
	want := []string{
		`"GET /signin.html HTTP/1.1" 200 ` + strconv.Itoa(len(signinHTML)),
		`"GET /missing.html HTTP/1.1" 404 `,
		`"OPTIONS /signin.html HTTP/1.1" 200 0`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d log lines, want %d: %q", len(lines), len(want), lines)
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "[") || !strings.Contains(line, "] ") {
			t.Errorf("line %d lacks timestamp prefix: %q", i, line)
		}
		if !strings.Contains(line, want[i]) {
			t.Errorf("line %d = %q, want it to contain %q", i, line, want[i])
		}
	}
}

func TestLiveReloadDisabled(t *testing.T) {
	f := newFixture(t, false)

	for _, target := range []string{domain.LiveReloadPath, domain.LiveReloadScript} {
		if rec := f.do(http.MethodGet, target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestLiveReloadScript(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, domain.LiveReloadScript)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.LiveReloadPath) {
		t.Errorf("script does not reference %s", domain.LiveReloadPath)
	}
	assertCORS(t, rec.Header())
}

func TestLiveReloadSocket(t *testing.T) {
	f := newFixture(t, true)
	srv := httptest.NewServer(f.api.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + domain.LiveReloadPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	assertCORS(t, resp.Header)

	deadline := time.Now().Add(2 * time.Second)
	for f.api.Reloads().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sent := f.api.Reloads().Broadcast(domain.ReloadMessage{Paths: []string{"signin.html"}}); sent != 1 {
		t.Fatalf("Broadcast() = %d, want 1", sent)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg domain.ReloadMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "reload" || len(msg.Paths) != 1 || msg.Paths[0] != "signin.html" {
		t.Errorf("message = %+v", msg)
	}

	// Closing the hub ends the session from the server side.
	f.api.Reloads().Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the socket to close")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	f := newFixture(t, false)

	ln, err := f.api.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.api.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + addr + "/signup.html")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != signupHTML {
		t.Errorf("GET = %d %q", resp.StatusCode, body)
	}
	assertCORS(t, resp.Header)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Error("listener still accepting after shutdown")
	}
}

func TestListenPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	f := newFixture(t, false)
	f.api.ctx.Config.Port = busy.Addr().(*net.TCPAddr).Port

	if ln, err := f.api.Listen(); err == nil {
		ln.Close()
		t.Error("Listen() on a busy port should fail")
	}
}

func TestContainsDotDot(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", false},
		{"/index.html", false},
		{"/a..b/c", false},
		{"/..", true},
		{"/a/../b", true},
		{"/a/..\\b", true},
		{"/...", false},
	}
	for _, tt := range tests {
		if got := containsDotDot(tt.path); got != tt.want {
			t.Errorf("containsDotDot(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
