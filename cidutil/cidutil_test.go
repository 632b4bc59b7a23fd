package cidutil

import "testing"

func TestSumIsStable(t *testing.T) {
	a := String([]byte("round registry"))
	b := String([]byte("round registry"))
	if a == "" || a != b {
		t.Fatalf("expected stable non-empty cid, got %q and %q", a, b)
	}
	if String([]byte("other")) == a {
		t.Fatalf("expected different content to differ")
	}
}

func TestCheck(t *testing.T) {
	data := []byte("payload")
	if err := Check(String(data), data); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if err := Check(String(data), []byte("tampered")); err == nil {
		t.Fatalf("expected mismatch")
	}
	if err := Check("not-a-cid", data); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestKnownVector(t *testing.T) {
	// sha2-256("") as CIDv1 raw.
	const want = "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"
	if got := String(nil); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
