package ring

import "testing"

func TestHashIDDeterministicAndInRange(t *testing.T) {
	const m = 16
	for _, s := range []string{"127.0.0.1:9001", "127.0.0.1:9002", "foo", ""} {
		a := HashID(s, m)
		b := HashID(s, m)
		if a != b {
			t.Fatalf("HashID(%q) not deterministic: %d != %d", s, a, b)
		}
		if uint64(a) >= uint64(1)<<m {
			t.Fatalf("HashID(%q) = %d out of range [0, 2^%d)", s, a, m)
		}
	}
}

func TestHashIDWidth64(t *testing.T) {
	id := HashID("127.0.0.1:9001", 64)
	_ = id // must not panic, and must fit in uint64 by construction
}

func TestInOpenOpenEmptyArc(t *testing.T) {
	for _, a := range []Identifier{0, 1, 500} {
		for _, x := range []Identifier{0, 1, 500, 999} {
			if InOpenOpen(x, a, a) {
				t.Fatalf("InOpenOpen(%d, %d, %d) = true, want false (empty arc)", x, a, a)
			}
		}
	}
}

func TestInOpenClosedFullRing(t *testing.T) {
	a, b := Identifier(5), Identifier(5)
	for _, x := range []Identifier{0, 5, 6, 1000} {
		if !InOpenClosed(x, a, b) {
			t.Fatalf("InOpenClosed(%d, %d, %d) = false, want true (a==b owns whole ring)", x, a, b)
		}
	}
}

func TestInOpenClosedIncludesUpperBound(t *testing.T) {
	a, b := Identifier(10), Identifier(20)
	if !InOpenClosed(b, a, b) {
		t.Fatalf("InOpenClosed(b, a, b) = false, want true")
	}
	if InOpenOpen(b, a, b) {
		t.Fatalf("InOpenOpen(b, a, b) = true, want false")
	}
}

func TestInOpenOpenWrapAround(t *testing.T) {
	a, b := Identifier(60000), Identifier(100)
	if !InOpenOpen(65000, a, b) {
		t.Fatalf("expected 65000 in wrap-around (a,b) open interval")
	}
	if !InOpenOpen(50, a, b) {
		t.Fatalf("expected 50 in wrap-around (a,b) open interval")
	}
	if InOpenOpen(30000, a, b) {
		t.Fatalf("did not expect 30000 in wrap-around (a,b) open interval")
	}
}

func TestInOpenClosedWrapAround(t *testing.T) {
	a, b := Identifier(60000), Identifier(100)
	if !InOpenClosed(100, a, b) {
		t.Fatalf("expected upper bound 100 included in wrap-around (a,b] interval")
	}
	if InOpenClosed(60000, a, b) {
		t.Fatalf("did not expect lower bound 60000 included in (a,b] interval")
	}
}

func TestMaskWidth64(t *testing.T) {
	if Mask(64) != ^uint64(0) {
		t.Fatalf("Mask(64) = %d, want max uint64", Mask(64))
	}
	if Mask(16) != 0xFFFF {
		t.Fatalf("Mask(16) = %d, want 0xFFFF", Mask(16))
	}
}
