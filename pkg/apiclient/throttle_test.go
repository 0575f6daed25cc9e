package apiclient

import (
	"encoding/json"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRequestKeyCacheWindow(t *testing.T) {
	clock := newFakeClock()
	cache := NewRequestKeyCache(DefaultThrottleWindow, clock.Now)

	if !cache.TryDispatch("GET:/historico:{}") {
		t.Fatal("first dispatch should be allowed")
	}
	clock.Advance(4999 * time.Millisecond)
	if cache.TryDispatch("GET:/historico:{}") {
		t.Fatal("dispatch inside the window should be rejected")
	}
	if cache.TryDispatch("GET:/historico:{}") {
		t.Fatal("rejected dispatch must not refresh the timestamp")
	}
	clock.Advance(time.Millisecond)
	if !cache.TryDispatch("GET:/historico:{}") {
		t.Fatal("dispatch after the window should be allowed")
	}
	last, ok := cache.lastDispatch("GET:/historico:{}")
	if !ok || !last.Equal(clock.Now()) {
		t.Fatalf("expected timestamp to be overwritten, got %v", last)
	}
}

func TestRequestKeyCacheIndependentKeys(t *testing.T) {
	cache := NewRequestKeyCache(DefaultThrottleWindow, newFakeClock().Now)
	if !cache.TryDispatch("GET:/a:{}") || !cache.TryDispatch("GET:/b:{}") {
		t.Fatal("different fingerprints should not throttle each other")
	}
}

func TestRequestKeyCacheDisabled(t *testing.T) {
	cache := NewRequestKeyCache(0, newFakeClock().Now)
	for i := 0; i < 3; i++ {
		if !cache.TryDispatch("GET:/a:{}") {
			t.Fatal("zero window should never throttle")
		}
	}
}

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	a, err := Fingerprint(VerbCreate, "/emparejador/calcular", json.RawMessage(`{"riesgo_maximo":50,"ponderaciones":{"patron":0,"dias":0.4},"dias_minimos":1}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint(VerbCreate, "/emparejador/calcular", json.RawMessage(`{"dias_minimos":1, "ponderaciones":{"dias":0.4,"patron":0}, "riesgo_maximo":50}`))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected identical fingerprints:\n%s\n%s", a, b)
	}
	want := `POST:/emparejador/calcular:{"dias_minimos":1,"ponderaciones":{"dias":0.4,"patron":0},"riesgo_maximo":50}`
	if a != want {
		t.Fatalf("unexpected fingerprint %s", a)
	}
}

func TestFingerprintDistinguishesVerbAndParams(t *testing.T) {
	read, _ := Fingerprint(VerbRead, "/afiliados", Params{"page": 1})
	remove, _ := Fingerprint(VerbRemove, "/afiliados", Params{"page": 1})
	page2, _ := Fingerprint(VerbRead, "/afiliados", Params{"page": 2})
	if read == remove || read == page2 {
		t.Fatalf("fingerprints should differ: %s %s %s", read, remove, page2)
	}

	empty, _ := Fingerprint(VerbRead, "/afiliados", nil)
	if empty != "GET:/afiliados:{}" {
		t.Fatalf("nil params should canonicalize to {}, got %s", empty)
	}
}
