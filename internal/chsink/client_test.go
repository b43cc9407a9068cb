package chsink

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"journalchd/internal/row"
)

func testRow() row.Row {
	return row.Row{
		MachineID: "abc123",
		BootID:    "boot1",
		Hostname:  "web-1",
		Transport: "syslog",
		Cursor:    "s=abc;i=1",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Record:    []row.KV{{Key: "MESSAGE", Value: "hello"}},
	}
}

func TestCommitNoopBelowThresholds(t *testing.T) {
	c, err := New(Config{URI: "http://localhost:8123/default", Table: "logs", MaxEntries: 100, Period: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(testRow()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Entries != 0 {
		t.Errorf("Commit flushed early: %+v", result)
	}
}

func TestCommitFlushesOnMaxEntries(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") == "" {
			t.Error("expected basic auth header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	withAuth, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	withAuth.User = url.UserPassword("default", "secret")
	withAuth.Path = "/mydb"

	c, err := New(Config{URI: withAuth.String(), Table: "logs", MaxEntries: 1, Period: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(testRow()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Entries != 1 {
		t.Errorf("Commit = %+v, want 1 entry flushed", result)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1", requests)
	}
}

func TestCommitNeverRetries4xx(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(Config{URI: srv.URL, Table: "logs", MaxEntries: 1, Period: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(testRow()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := c.Commit(); err == nil {
		t.Fatal("want error from 4xx response")
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want exactly 1 (no retry on 4xx)", requests)
	}
}

func TestEndFlushesUnconditionally(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{URI: srv.URL, Table: "logs", MaxEntries: 100000, Period: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(testRow()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1", requests)
	}
}

func TestNewRejectsMalformedURI(t *testing.T) {
	if _, err := New(Config{URI: "http://[::1"}); err == nil {
		t.Fatal("want error for malformed URI")
	}
	if _, err := New(Config{URI: "/just/a/path"}); err == nil {
		t.Fatal("want error for URI missing scheme/host")
	}
}

func TestEncodeRowBinaryRoundTripShape(t *testing.T) {
	b, err := encodeRowBinary([]row.Row{testRow()})
	if err != nil {
		t.Fatalf("encodeRowBinary: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("encoded payload is empty")
	}
}
