package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSanitizingHandlerRedactsCredentialMaterial(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(WrapHandler(base))
	logger.Info("salt derived",
		"id_token", "eyJhbGciOi.secret.payload",
		"salt", "129390038577185583942388078133609",
		"jwt_randomness", "100681567828351849884072155819400689117",
		"status", "ok",
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	for _, key := range []string{"id_token", "salt", "jwt_randomness"} {
		if got, _ := payload[key].(string); got != redactedValue {
			t.Fatalf("expected %s redacted, got %q", key, got)
		}
	}
	if got, _ := payload["status"].(string); got != "ok" {
		t.Fatalf("expected status untouched, got %q", got)
	}
	if strings.Contains(buf.String(), "secret.payload") {
		t.Fatalf("token leaked into log output: %s", buf.String())
	}
}

func TestSanitizingHandlerFingerprintsSubjects(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("request", "sub", "110462281353657638341", "iss", "https://accounts.example.com")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["sub"]; ok {
		t.Fatal("sub should not appear verbatim")
	}
	fp, ok := payload["sub_fp"].(string)
	if !ok || !strings.HasPrefix(fp, "fp_") {
		t.Fatalf("expected fp_ prefixed sub_fp, got %v", payload["sub_fp"])
	}
	if got, _ := payload["iss"].(string); got != "https://accounts.example.com" {
		t.Fatalf("issuer should pass through, got %q", got)
	}
}

func TestFingerprintIDStableWithinProcess(t *testing.T) {
	a := FingerprintID("subject-1")
	b := FingerprintID("subject-1")
	c := FingerprintID("subject-2")
	if a != b {
		t.Fatalf("same input produced different fingerprints: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("different inputs produced the same fingerprint")
	}
	if FingerprintID("  ") != "" {
		t.Fatal("blank input should fingerprint to empty")
	}
}

func TestSanitizingHandlerImplementsSlogHandlerContract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("attempt_id", "att1abc"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "attempt_id_fp") {
		t.Fatalf("expected fingerprinted attempt_id key, got %s", buf.String())
	}
}
