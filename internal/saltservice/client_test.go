package saltservice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientResolveSalt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hkdf" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"salt":"129390038577185583942388078133609"}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, nil).ResolveSalt(context.Background(), "tok")
	if err != nil {
		t.Fatalf("resolve salt: %v", err)
	}
	if got != "129390038577185583942388078133609" {
		t.Fatalf("unexpected salt %q", got)
	}
}

func TestClientNormalizesHexSalt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"salt":"0x0100"}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, nil).ResolveSalt(context.Background(), "tok")
	if err != nil {
		t.Fatalf("resolve salt: %v", err)
	}
	if got != "256" {
		t.Fatalf("expected hex salt decoded to 256, got %q", got)
	}
}

func TestClientSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token invalid: token is expired"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ResolveSalt(context.Background(), "tok")
	if !errors.Is(err, ErrSaltService) {
		t.Fatalf("expected ErrSaltService, got %v", err)
	}
}

func TestClientUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, nil).ResolveSalt(context.Background(), "tok")
	if !errors.Is(err, ErrSaltService) {
		t.Fatalf("expected ErrSaltService, got %v", err)
	}
}

func TestNormalizeSalt(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12345", want: "12345"},
		{in: " 12345 ", want: "12345"},
		// Digits-only is always decimal, even when it would parse as hex.
		{in: "999", want: "999"},
		{in: "0x10", want: "16"},
		{in: "ff", want: "255"},
		{in: "deadBEEF", want: "3735928559"},
		{in: "", wantErr: true},
		{in: "0x", wantErr: true},
		{in: "not-a-number", wantErr: true},
		{in: "-5", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeSalt(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeSalt(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeSalt(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeSalt(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
