package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckSource_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	ctx := context.Background()
	if err := CheckSource(ctx, nil, srv.URL); err != nil {
		t.Fatalf("CheckSource: %v", err)
	}
}

func TestCheckSource_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	ctx := context.Background()
	err := CheckSource(ctx, srv.Client(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestCheckSource_emptyURL(t *testing.T) {
	ctx := context.Background()
	err := CheckSource(ctx, nil, "")
	if err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestCheckSource_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.xml")
	if err := os.WriteFile(path, []byte("<tv/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := CheckSource(ctx, nil, path); err != nil {
		t.Fatalf("CheckSource(file): %v", err)
	}
	if err := CheckSource(ctx, nil, filepath.Join(dir, "missing.xml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if err := CheckSource(ctx, nil, dir); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestCheckEndpoints_ok(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/guide.xml", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/report.json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	ctx := context.Background()
	if err := CheckEndpoints(ctx, srv.URL+"/"); err != nil {
		t.Fatalf("CheckEndpoints: %v", err)
	}
}

func TestCheckEndpoints_missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	ctx := context.Background()
	err := CheckEndpoints(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
}
