package logger

import (
	"strings"
	"testing"
)

func TestRedactorMasksSecretsAndHashesIDs(t *testing.T) {
	r := redactor{enabled: true, salt: "pepper"}

	out := r.kvs([]interface{}{
		"share_token", "abc",
		"evaluator_email", "jo@example.com",
		"user_id", "7d1f",
		"title", "Intro Talk",
	})
	if len(out) != 8 {
		t.Fatalf("kvs: expected 8 entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("share_token: expected redaction, got %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("evaluator_email: expected redaction, got %v", out[3])
	}
	hashed, _ := out[5].(string)
	if !strings.HasPrefix(hashed, "hash:") || len(hashed) != len("hash:")+12 {
		t.Fatalf("user_id: expected 12-char hash, got %q", hashed)
	}
	if out[7] != "Intro Talk" {
		t.Fatalf("title: expected passthrough, got %v", out[7])
	}
}

func TestRedactorDisabledPassesThrough(t *testing.T) {
	r := redactor{enabled: false}
	out := r.kvs([]interface{}{"access_token", "raw"})
	if out[1] != "raw" {
		t.Fatalf("expected passthrough when disabled, got %v", out[1])
	}
}

func TestRedactorKeepsOddTrailingKey(t *testing.T) {
	r := redactor{enabled: true}
	out := r.kvs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestRedactorMasksJWTLookingValues(t *testing.T) {
	r := redactor{enabled: true}
	jwtish := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	out := r.kvs([]interface{}{"header", jwtish})
	if out[1] != "[REDACTED]" {
		t.Fatalf("expected JWT value to be redacted, got %v", out[1])
	}
}
