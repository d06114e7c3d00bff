package sealed

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"settings-lite/internal/settings"
	"settings-lite/internal/settings/file"
	"settings-lite/internal/settings/memory"
)

// testParams keep key derivation cheap in tests.
var testParams = KDFParams{Time: 1, Memory: 64, Threads: 1}

func TestSealedContract(t *testing.T) {
	settings.RunContractTests(t, func(t *testing.T) settings.Opener {
		inner := memory.New()
		return func() (settings.Medium, error) {
			return New(inner, "correct horse", WithKDFParams(testParams))
		}
	})
}

func TestSealedOverFileContract(t *testing.T) {
	settings.RunContractTests(t, func(t *testing.T) settings.Opener {
		path := filepath.Join(t.TempDir(), "secrets.yaml")
		return func() (settings.Medium, error) {
			inner, err := file.New(path)
			if err != nil {
				return nil, err
			}
			return New(inner, "correct horse", WithKDFParams(testParams))
		}
	})
}

func TestValuesAreEncryptedAtRest(t *testing.T) {
	inner := memory.New()
	m, err := New(inner, "pw", WithKDFParams(testParams))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := m.Save(ctx, map[string]settings.Value{"api.token": settings.StringValue("hunter2")}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, _ := inner.Load(ctx)
	v, ok := raw["api.token"]
	if !ok {
		t.Fatal("key should stay in the clear")
	}
	if strings.Contains(v.Text(), "hunter2") {
		t.Error("value stored in plaintext")
	}
	if raw[paramKey].Text() != testParams.String() {
		t.Errorf("kdf params = %q, want %q", raw[paramKey].Text(), testParams.String())
	}
}

func TestWrongPassphrase(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()
	m, _ := New(inner, "right", WithKDFParams(testParams))
	if err := m.Save(ctx, map[string]settings.Value{"a": settings.IntValue(1)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong, _ := New(inner, "wrong", WithKDFParams(testParams))
	if _, err := wrong.Load(ctx); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Load with wrong passphrase: got %v, want ErrWrongPassphrase", err)
	}
}

func TestSwappedCiphertextIsCorrupt(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()
	m, _ := New(inner, "pw", WithKDFParams(testParams))
	err := m.Save(ctx, map[string]settings.Value{
		"a": settings.IntValue(1),
		"b": settings.IntValue(2),
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, _ := inner.Load(ctx)
	raw["a"], raw["b"] = raw["b"], raw["a"]
	if err := inner.Save(ctx, raw); err != nil {
		t.Fatal(err)
	}

	again, _ := New(inner, "pw", WithKDFParams(testParams))
	if _, err := again.Load(ctx); !errors.Is(err, settings.ErrCorrupt) {
		t.Errorf("Load with swapped values: got %v, want ErrCorrupt", err)
	}
}

func TestReservedKeyRejected(t *testing.T) {
	m, _ := New(memory.New(), "pw", WithKDFParams(testParams))
	err := m.Save(context.Background(), map[string]settings.Value{ReservedPrefix + "salt": settings.StringValue("x")})
	if !errors.Is(err, ErrReservedKey) {
		t.Errorf("Save reserved key: got %v, want ErrReservedKey", err)
	}
}

func TestEmptyPassphrase(t *testing.T) {
	if _, err := New(memory.New(), ""); err == nil {
		t.Error("New with empty passphrase should fail")
	}
}

func TestParseKDFParams(t *testing.T) {
	got, err := parseKDFParams(DefaultKDFParams.String())
	if err != nil || got != DefaultKDFParams {
		t.Errorf("parseKDFParams round trip = %+v, %v", got, err)
	}
	for _, bad := range []string{"", "scrypt:n=1", "argon2id:t=0,m=1,p=1"} {
		if _, err := parseKDFParams(bad); !errors.Is(err, settings.ErrCorrupt) {
			t.Errorf("parseKDFParams(%q): got %v, want ErrCorrupt", bad, err)
		}
	}
}
