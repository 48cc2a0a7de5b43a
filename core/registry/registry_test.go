package registry

import "testing"

func TestRegistry_SetGetLock(t *testing.T) {
	r := New()
	if _, ok := r.GetGlobal("k"); ok {
		t.Fatal("unexpected value for unset key")
	}
	r.SetGlobal("k", 42)
	v, ok := r.GetGlobal("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("GetGlobal = %v, %v; want 42, true", v, ok)
	}
	if r.IsLocked("k") {
		t.Fatal("key locked before Lock")
	}
	r.Lock("k")
	if !r.IsLocked("k") {
		t.Fatal("key not locked after Lock")
	}
	r.UnlockForTesting("k")
	if r.IsLocked("k") {
		t.Fatal("key still locked after UnlockForTesting")
	}
}
