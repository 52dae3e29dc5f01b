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

func TestSanitizeAttrFingerprintsSignerSets(t *testing.T) {
	signers := []string{"7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", "FX6obMKSmgdg5FygYaVqsytTfswENphFiPJ9v5NsFa1B"}
	attr := SanitizeAttr(slog.Any("signers", signers))
	if attr.Key != "signers_fp" {
		t.Fatalf("unexpected key: %s", attr.Key)
	}
	got, ok := attr.Value.Any().([]string)
	if !ok || len(got) != len(signers) {
		t.Fatalf("expected %d fingerprints, got %v", len(signers), attr.Value)
	}
	for i, fp := range got {
		if !strings.HasPrefix(fp, "fp_") || len(fp) != len("fp_")+16 || fp != Fingerprint(signers[i]) {
			t.Fatalf("unexpected fingerprint %q for %s", fp, signers[i])
		}
	}

	if got := SanitizeAttr(slog.String("mnemonic", "abandon abandon about")); got.Value.String() != redactedValue {
		t.Fatalf("expected redacted mnemonic, got %v", got.Value)
	}
	if got := SanitizeAttr(slog.String("operation", "vote")); got.Key != "operation" || got.Value.String() != "vote" {
		t.Fatalf("expected untouched attr, got %v", got)
	}
}

func TestFingerprintStableWithinProcess(t *testing.T) {
	a := Fingerprint(" owner-1 ")
	if a != Fingerprint("owner-1") {
		t.Fatal("fingerprint must ignore surrounding space and be stable")
	}
	if a == Fingerprint("owner-2") {
		t.Fatal("distinct values must not share a fingerprint")
	}
	if Fingerprint("  ") != "" {
		t.Fatal("blank values fingerprint to empty")
	}
}

func TestSanitizingHandlerRedactsSecretsAndIdentities(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("test",
		"payer", "payer-address",
		"storage_passphrase", "hunter2",
		"private_key", "abc",
		"status", "ok",
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["payer"]; ok {
		t.Fatal("payer should not be present")
	}
	if _, ok := payload["payer_fp"]; !ok {
		t.Fatal("payer_fp should be present")
	}
	for _, key := range []string{"storage_passphrase", "private_key"} {
		if got, _ := payload[key].(string); got != redactedValue {
			t.Fatalf("expected redacted %s, got %q", key, got)
		}
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
}

func TestSanitizingHandlerCoversGroupsAndWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	h = h.WithAttrs([]slog.Attr{slog.String("rpc_token", "t0k")})
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.Group("tx", slog.String("owner", "o1"), slog.String("name", "Day1")))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "t0k") || strings.Contains(out, `"o1"`) {
		t.Fatalf("secret or identity leaked: %s", out)
	}
	if !strings.Contains(out, "owner_fp") || !strings.Contains(out, "Day1") {
		t.Fatalf("expected sanitized group, got %s", out)
	}
}
