package settings

import (
	"context"
	"errors"
	"math"
	"testing"
)

// Opener attaches a new Medium to one persistence target. Calling it
// again after the previous Medium is closed simulates a process restart.
type Opener func() (Medium, error)

// RunContractTests runs the full contract test suite against a Medium
// implementation. Each backend should call this with its own factory,
// which must return an Opener bound to a fresh, empty target.
func RunContractTests(t *testing.T, factory func(t *testing.T) Opener) {
	t.Run("ScalarRoundTrip", func(t *testing.T) { testScalarRoundTrip(t, factory(t)) })
	t.Run("MissingKey", func(t *testing.T) { testMissingKey(t, factory(t)) })
	t.Run("RemoveKey", func(t *testing.T) { testRemoveKey(t, factory(t)) })
	t.Run("RemoveAllKeys", func(t *testing.T) { testRemoveAllKeys(t, factory(t)) })
	t.Run("TypeMismatch", func(t *testing.T) { testTypeMismatch(t, factory(t)) })
	t.Run("Coercion", func(t *testing.T) { testCoercion(t, factory(t)) })
	t.Run("ObjectRoundTrip", func(t *testing.T) { testObjectRoundTrip(t, factory(t)) })
	t.Run("ObjectDefault", func(t *testing.T) { testObjectDefault(t, factory(t)) })
	t.Run("OverwriteAcrossKinds", func(t *testing.T) { testOverwriteAcrossKinds(t, factory(t)) })
	t.Run("PersistAcrossReopen", func(t *testing.T) { testPersistAcrossReopen(t, factory(t)) })
	t.Run("CloseDiscardsUnsaved", func(t *testing.T) { testCloseDiscardsUnsaved(t, factory(t)) })
	t.Run("SaveAfterFailedSave", func(t *testing.T) { testSaveAfterFailedSave(t, factory(t)) })
	t.Run("SaveRemovals", func(t *testing.T) { testSaveRemovals(t, factory(t)) })
	t.Run("SaveAfterClose", func(t *testing.T) { testSaveAfterClose(t, factory(t)) })
}

type contractProfile struct {
	Level int    `json:"level"`
	XP    int    `json:"xp"`
	Name  string `json:"name,omitempty"`
}

func openStore(t *testing.T, open Opener) *Store {
	t.Helper()
	m, err := open()
	if err != nil {
		t.Fatalf("opening medium: %v", err)
	}
	s, err := Open(m)
	if err != nil {
		m.Close()
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func closeStore(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func testScalarRoundTrip(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	s.SetInt("volume", 80)
	if got, err := s.GetInt("volume"); err != nil || got != 80 {
		t.Errorf("GetInt(volume) = %d, %v; want 80, nil", got, err)
	}

	s.SetBool("fullscreen", true)
	if got, err := s.GetBool("fullscreen"); err != nil || !got {
		t.Errorf("GetBool(fullscreen) = %v, %v; want true, nil", got, err)
	}

	s.SetFloat("gamma", 2.2)
	if got, err := s.GetFloat("gamma"); err != nil || got != 2.2 {
		t.Errorf("GetFloat(gamma) = %v, %v; want 2.2, nil", got, err)
	}

	s.SetString("name", "Alice")
	if got, err := s.GetString("name"); err != nil || got != "Alice" {
		t.Errorf("GetString(name) = %q, %v; want Alice, nil", got, err)
	}

	s.SetString("empty", "")
	if !s.HasKey("empty") {
		t.Error("HasKey(empty) = false after SetString with empty value")
	}
	if got, err := s.GetStringOr("empty", "fallback"); err != nil || got != "" {
		t.Errorf("GetStringOr(empty) = %q, %v; want empty string", got, err)
	}
}

func testMissingKey(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	if s.HasKey("missingKey") {
		t.Error("HasKey on empty store should be false")
	}

	if got, err := s.GetIntOr("missingKey", 50); err != nil || got != 50 {
		t.Errorf("GetIntOr(missingKey, 50) = %d, %v; want 50, nil", got, err)
	}
	if got, err := s.GetBoolOr("missingKey", true); err != nil || !got {
		t.Errorf("GetBoolOr(missingKey, true) = %v, %v; want true, nil", got, err)
	}
	if got, err := s.GetFloatOr("missingKey", 0.5); err != nil || got != 0.5 {
		t.Errorf("GetFloatOr(missingKey, 0.5) = %v, %v; want 0.5, nil", got, err)
	}
	if got, err := s.GetStringOr("missingKey", "x"); err != nil || got != "x" {
		t.Errorf("GetStringOr(missingKey, x) = %q, %v; want x, nil", got, err)
	}
	if s.HasKey("missingKey") {
		t.Error("default lookup must not create an entry")
	}

	if _, err := s.GetInt("missingKey"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("GetInt missing: got %v, want ErrMissingKey", err)
	}
	if _, err := s.GetBool("missingKey"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("GetBool missing: got %v, want ErrMissingKey", err)
	}
	if _, err := s.GetFloat("missingKey"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("GetFloat missing: got %v, want ErrMissingKey", err)
	}
	if _, err := s.GetString("missingKey"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("GetString missing: got %v, want ErrMissingKey", err)
	}
	var p contractProfile
	if err := s.GetObject("missingKey", &p); !errors.Is(err, ErrMissingKey) {
		t.Errorf("GetObject missing: got %v, want ErrMissingKey", err)
	}
	if s.Dirty() {
		t.Error("reads must not mark the store dirty")
	}
}

func testRemoveKey(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	s.SetString("name", "Alice")
	s.RemoveKey("name")
	if s.HasKey("name") {
		t.Error("HasKey(name) = true after RemoveKey")
	}

	// Removing twice, or a key never set, is safe.
	s.RemoveKey("name")
	s.RemoveKey("never-set")
	if s.HasKey("name") || s.HasKey("never-set") {
		t.Error("RemoveKey should leave keys absent")
	}
}

func testRemoveAllKeys(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	keys := []string{"a", "b.c", "d", "e", "f"}
	s.SetInt(keys[0], 1)
	s.SetBool(keys[1], true)
	s.SetFloat(keys[2], 1.5)
	s.SetString(keys[3], "x")
	if err := s.SetObject(keys[4], contractProfile{Level: 1}); err != nil {
		t.Fatalf("SetObject failed: %v", err)
	}
	if s.Len() != 5 {
		t.Fatalf("Len = %d, want 5", s.Len())
	}

	s.RemoveAllKeys()
	for _, k := range keys {
		if s.HasKey(k) {
			t.Errorf("HasKey(%q) = true after RemoveAllKeys", k)
		}
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after RemoveAllKeys, want 0", s.Len())
	}
}

func testTypeMismatch(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	s.SetString("volume", "loud")
	if _, err := s.GetInt("volume"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetInt on non-numeric string: got %v, want ErrTypeMismatch", err)
	}
	// A default does not mask a present value of the wrong type.
	if _, err := s.GetIntOr("volume", 50); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetIntOr on non-numeric string: got %v, want ErrTypeMismatch", err)
	}
	if _, err := s.GetBoolOr("volume", false); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetBoolOr on non-bool string: got %v, want ErrTypeMismatch", err)
	}

	if err := s.SetObject("profile", contractProfile{Level: 3}); err != nil {
		t.Fatalf("SetObject failed: %v", err)
	}
	if _, err := s.GetString("profile"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetString on object: got %v, want ErrTypeMismatch", err)
	}

	s.SetInt("count", 3)
	var p contractProfile
	if err := s.GetObject("count", &p, Default(contractProfile{Level: 9})); !errors.Is(err, ErrDeserialization) {
		t.Errorf("GetObject on int entry: got %v, want ErrDeserialization", err)
	}
}

func testCoercion(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	s.SetString("int-text", "42")
	if got, err := s.GetInt("int-text"); err != nil || got != 42 {
		t.Errorf("GetInt(\"42\") = %d, %v; want 42", got, err)
	}
	s.SetString("bool-text", "true")
	if got, err := s.GetBool("bool-text"); err != nil || !got {
		t.Errorf("GetBool(\"true\") = %v, %v; want true", got, err)
	}
	s.SetInt("one", 1)
	if got, err := s.GetBool("one"); err != nil || !got {
		t.Errorf("GetBool(1) = %v, %v; want true", got, err)
	}
	s.SetInt("two", 2)
	if _, err := s.GetBool("two"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetBool(2): got %v, want ErrTypeMismatch", err)
	}
	if got, err := s.GetFloat("two"); err != nil || got != 2 {
		t.Errorf("GetFloat(int 2) = %v, %v; want 2", got, err)
	}
	if got, err := s.GetString("two"); err != nil || got != "2" {
		t.Errorf("GetString(int 2) = %q, %v; want \"2\"", got, err)
	}
	s.SetFloat("whole", 3.0)
	if got, err := s.GetInt("whole"); err != nil || got != 3 {
		t.Errorf("GetInt(3.0) = %d, %v; want 3", got, err)
	}
	s.SetFloat("fraction", 3.5)
	if _, err := s.GetInt("fraction"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetInt(3.5): got %v, want ErrTypeMismatch", err)
	}
	s.SetBool("flag", false)
	if _, err := s.GetFloat("flag"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetFloat(bool): got %v, want ErrTypeMismatch", err)
	}
	if got, err := s.GetString("flag"); err != nil || got != "false" {
		t.Errorf("GetString(false) = %q, %v; want \"false\"", got, err)
	}
}

func testObjectRoundTrip(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	want := contractProfile{Level: 3, XP: 120}
	if err := s.SetObject("profile", want); err != nil {
		t.Fatalf("SetObject failed: %v", err)
	}
	got, err := Object[contractProfile](s, "profile")
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}
	if got != want {
		t.Errorf("Object(profile) = %+v, want %+v", got, want)
	}

	// Shape mismatch leaves the target untouched.
	var wrong struct {
		Other []string `json:"other"`
	}
	wrong.Other = []string{"keep"}
	if err := s.GetObject("profile", &wrong); !errors.Is(err, ErrDeserialization) {
		t.Errorf("GetObject with wrong shape: got %v, want ErrDeserialization", err)
	}
	if len(wrong.Other) != 1 || wrong.Other[0] != "keep" {
		t.Errorf("target modified on failed decode: %+v", wrong)
	}

	if err := s.GetObject("profile", contractProfile{}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("GetObject with non-pointer: got %v, want ErrInvalidTarget", err)
	}

	if err := s.SetObject("bad", func() {}); !errors.Is(err, ErrSerialization) {
		t.Errorf("SetObject(func): got %v, want ErrSerialization", err)
	}
	if s.HasKey("bad") {
		t.Error("failed SetObject must not create an entry")
	}
}

func testObjectDefault(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	def := contractProfile{Level: 1, Name: "new"}
	got, err := ObjectOr(s, "profile", def)
	if err != nil {
		t.Fatalf("ObjectOr failed: %v", err)
	}
	if got != def {
		t.Errorf("ObjectOr = %+v, want default %+v", got, def)
	}
	if s.HasKey("profile") {
		t.Error("default object must not be written back")
	}

	var p contractProfile
	if err := s.GetObject("profile", &p, Default("not a profile")); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("unassignable default: got %v, want ErrInvalidTarget", err)
	}

	// A present but malformed object still fails with a default.
	if err := s.SetObject("profile", map[string]string{"level": "high"}); err != nil {
		t.Fatalf("SetObject failed: %v", err)
	}
	if _, err := ObjectOr(s, "profile", def); !errors.Is(err, ErrDeserialization) {
		t.Errorf("ObjectOr on malformed object: got %v, want ErrDeserialization", err)
	}
}

func testOverwriteAcrossKinds(t *testing.T, open Opener) {
	s := openStore(t, open)
	defer s.Close()

	s.SetBool("slot", true)
	obj := contractProfile{Level: 7, XP: 1}
	if err := s.SetObject("slot", obj); err != nil {
		t.Fatalf("SetObject failed: %v", err)
	}
	got, err := Object[contractProfile](s, "slot")
	if err != nil || got != obj {
		t.Errorf("Object(slot) = %+v, %v; want %+v", got, err, obj)
	}

	s.SetString("slot", "text")
	if got, err := s.GetString("slot"); err != nil || got != "text" {
		t.Errorf("GetString(slot) = %q, %v; want text", got, err)
	}
	if err := s.GetObject("slot", &got); !errors.Is(err, ErrDeserialization) {
		t.Errorf("GetObject after string overwrite: got %v, want ErrDeserialization", err)
	}
}

// awkwardStrings are values text formats tend to mangle.
var awkwardStrings = map[string]string{
	"s.invalid-utf8": "a\xffb",
	"s.nul":          "a\x00b",
	"s.controls":     "\x01\x1b[0m\r\n\t\x7f\u0085",
	"s.nonchar":      "\uffff",
	"s.base64-like":  "YWJj",
	"s.quotes":       `"'\\ ''' \"\"\"`,
}

func testPersistAcrossReopen(t *testing.T, open Opener) {
	s := openStore(t, open)
	s.SetBool("b", true)
	s.SetInt("i.max", math.MaxInt64)
	s.SetInt("i.min", math.MinInt64)
	s.SetInt("i.neg", -80)
	s.SetFloat("f", 0.1)
	s.SetFloat("f.big", 1e300)
	s.SetString("s", "héllo wörld\nsecond line")
	s.SetString("s.empty", "")
	s.SetString("key with spaces/and:punctuation", "ok")
	for k, v := range awkwardStrings {
		s.SetString(k, v)
	}
	s.SetFloat("f.nan", math.NaN())
	s.SetFloat("f.inf", math.Inf(1))
	s.SetFloat("f.ninf", math.Inf(-1))
	if err := s.SetObject("o", contractProfile{Level: 3, XP: 120}); err != nil {
		t.Fatalf("SetObject failed: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.Dirty() {
		t.Error("Dirty should be false after Save")
	}
	closeStore(t, s)

	s = openStore(t, open)
	defer s.Close()

	if want := 13 + len(awkwardStrings); s.Len() != want {
		t.Errorf("Len after reopen = %d, want %d (keys %v)", s.Len(), want, s.Keys())
	}
	if got, err := s.GetBool("b"); err != nil || !got {
		t.Errorf("b = %v, %v", got, err)
	}
	if got, err := s.GetInt("i.max"); err != nil || got != math.MaxInt64 {
		t.Errorf("i.max = %d, %v", got, err)
	}
	if got, err := s.GetInt("i.min"); err != nil || got != math.MinInt64 {
		t.Errorf("i.min = %d, %v", got, err)
	}
	if got, err := s.GetInt("i.neg"); err != nil || got != -80 {
		t.Errorf("i.neg = %d, %v", got, err)
	}
	if got, err := s.GetFloat("f"); err != nil || got != 0.1 {
		t.Errorf("f = %v, %v", got, err)
	}
	if got, err := s.GetFloat("f.big"); err != nil || got != 1e300 {
		t.Errorf("f.big = %v, %v", got, err)
	}
	if got, err := s.GetString("s"); err != nil || got != "héllo wörld\nsecond line" {
		t.Errorf("s = %q, %v", got, err)
	}
	if got, err := s.GetString("s.empty"); err != nil || got != "" {
		t.Errorf("s.empty = %q, %v", got, err)
	}
	if got, err := s.GetString("key with spaces/and:punctuation"); err != nil || got != "ok" {
		t.Errorf("punctuated key = %q, %v", got, err)
	}
	for k, want := range awkwardStrings {
		if got, err := s.GetString(k); err != nil || got != want {
			t.Errorf("%s = %q, %v; want %q", k, got, err, want)
		}
	}
	if got, err := s.GetFloat("f.nan"); err != nil || !math.IsNaN(got) {
		t.Errorf("f.nan = %v, %v", got, err)
	}
	if got, err := s.GetFloat("f.inf"); err != nil || !math.IsInf(got, 1) {
		t.Errorf("f.inf = %v, %v", got, err)
	}
	if got, err := s.GetFloat("f.ninf"); err != nil || !math.IsInf(got, -1) {
		t.Errorf("f.ninf = %v, %v", got, err)
	}
	got, err := Object[contractProfile](s, "o")
	if err != nil || got != (contractProfile{Level: 3, XP: 120}) {
		t.Errorf("o = %+v, %v", got, err)
	}

	// Kinds survive the medium, not just the text.
	if v, _ := s.Lookup("i.neg"); v.Kind() != KindInt {
		t.Errorf("i.neg kind = %s, want int", v.Kind())
	}
	if v, _ := s.Lookup("s.empty"); v.Kind() != KindString {
		t.Errorf("s.empty kind = %s, want string", v.Kind())
	}
	if v, _ := s.Lookup("f.big"); v.Kind() != KindFloat {
		t.Errorf("f.big kind = %s, want float", v.Kind())
	}
}

func testCloseDiscardsUnsaved(t *testing.T, open Opener) {
	s := openStore(t, open)
	s.SetInt("kept", 1)
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.SetInt("lost", 2)
	if !s.Dirty() {
		t.Error("Dirty should be true after an unsaved mutation")
	}
	closeStore(t, s)
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	s = openStore(t, open)
	defer s.Close()
	if !s.HasKey("kept") {
		t.Error("saved key missing after reopen")
	}
	if s.HasKey("lost") {
		t.Error("unsaved key present after reopen; Close must not save")
	}
}

type faultyMedium struct {
	Medium
	fail error
}

func (f *faultyMedium) Save(ctx context.Context, entries map[string]Value) error {
	if f.fail != nil {
		return f.fail
	}
	return f.Medium.Save(ctx, entries)
}

func testSaveAfterFailedSave(t *testing.T, open Opener) {
	m, err := open()
	if err != nil {
		t.Fatalf("opening medium: %v", err)
	}
	faulty := &faultyMedium{Medium: m}
	s, err := Open(faulty)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.SetInt("before", 1)
	if err := s.Save(); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	injected := errors.New("disk full")
	faulty.fail = injected
	s.SetInt("during", 2)
	err = s.Save()
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("failed Save: got %v, want ErrPersistence", err)
	}
	if !errors.Is(err, injected) {
		t.Errorf("failed Save should wrap the medium error, got %v", err)
	}
	if !s.HasKey("during") || !s.Dirty() {
		t.Error("failed Save must leave the in-memory view intact and dirty")
	}

	faulty.fail = nil
	s.SetInt("after", 3)
	if err := s.Save(); err != nil {
		t.Fatalf("retry Save failed: %v", err)
	}
	closeStore(t, s)

	s = openStore(t, open)
	defer s.Close()
	for _, k := range []string{"before", "during", "after"} {
		if !s.HasKey(k) {
			t.Errorf("key %q lost across failed Save", k)
		}
	}
}

func testSaveRemovals(t *testing.T, open Opener) {
	s := openStore(t, open)
	s.SetInt("a", 1)
	s.SetInt("b", 2)
	s.SetInt("c", 3)
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.RemoveKey("a")
	if err := s.Save(); err != nil {
		t.Fatalf("Save after RemoveKey failed: %v", err)
	}
	closeStore(t, s)

	s = openStore(t, open)
	if s.HasKey("a") || !s.HasKey("b") {
		t.Errorf("after RemoveKey+Save keys = %v, want [b c]", s.Keys())
	}
	s.RemoveAllKeys()
	if err := s.Save(); err != nil {
		t.Fatalf("Save after RemoveAllKeys failed: %v", err)
	}
	closeStore(t, s)

	s = openStore(t, open)
	defer s.Close()
	if s.Len() != 0 {
		t.Errorf("after RemoveAllKeys+Save keys = %v, want none", s.Keys())
	}
}

func testSaveAfterClose(t *testing.T, open Opener) {
	s := openStore(t, open)
	closeStore(t, s)
	s.SetInt("x", 1)
	if err := s.Save(); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close: got %v, want ErrClosed", err)
	}
}
