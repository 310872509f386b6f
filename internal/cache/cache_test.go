package cache

import (
	"testing"
	"time"
)

func TestValue_FreshAndExpired(t *testing.T) {
	v := New[int](time.Minute)
	now := time.Now()

	if _, ok := v.Get(now); ok {
		t.Fatalf("empty cache must miss")
	}

	v.Set(42, now)
	if got, ok := v.Get(now.Add(30 * time.Second)); !ok || got != 42 {
		t.Fatalf("fresh value: got %v, ok=%v", got, ok)
	}
	if _, ok := v.Get(now.Add(2 * time.Minute)); ok {
		t.Fatalf("expired value must miss")
	}
}

func TestValue_Invalidate(t *testing.T) {
	v := New[string](time.Hour)
	now := time.Now()
	v.Set("stats", now)
	v.Invalidate()
	if _, ok := v.Get(now); ok {
		t.Fatalf("invalidated value must miss")
	}
}
