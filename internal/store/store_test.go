package store

import (
	"sync"
	"testing"
)

func TestPutGet(t *testing.T) {
	s := New()
	if _, ok := s.Get("foo"); ok {
		t.Fatalf("expected missing key to report ok=false")
	}
	s.Put("foo", "bar")
	v, ok := s.Get("foo")
	if !ok || v != "bar" {
		t.Fatalf("Get(foo) = (%q, %v), want (bar, true)", v, ok)
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.Put("a", "1")
	s.Put("b", "2")
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("expected key to be gone after Clear")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Put("k", "v")
		}(i)
		go func(i int) {
			defer wg.Done()
			s.Get("k")
		}(i)
	}
	wg.Wait()
}
