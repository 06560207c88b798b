package buffer

import (
	"reflect"
	"testing"
)

func writeAll(b *ChannelBuffer, values ...float64) {
	for _, v := range values {
		b.Write(v)
	}
}

func TestFullWindowAfterWrap(t *testing.T) {
	b := New(5)
	writeAll(b, 1, 2, 3, 4, 5, 6, 7)

	got := ExtractLatest(b, 0).AppendTo(nil)
	want := []float64{3, 4, 5, 6, 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("full window = %v, want %v", got, want)
	}
	if pos := b.Position(); pos.Index != 2 || pos.Written != 7 {
		t.Fatalf("unexpected position %+v", pos)
	}
}

func TestWraparoundReturnsLastCapacityValues(t *testing.T) {
	const capacity = 8
	for k := 0; k < capacity; k++ {
		b := New(capacity)
		for i := 1; i <= capacity+k; i++ {
			b.Write(float64(i))
		}
		got := ExtractLatest(b, capacity).AppendTo(nil)
		if len(got) != capacity {
			t.Fatalf("k=%d: expected %d samples, got %d", k, capacity, len(got))
		}
		for i, v := range got {
			want := float64(k + 1 + i)
			if v != want {
				t.Fatalf("k=%d: sample %d = %v, want %v (%v)", k, i, v, want, got)
			}
		}
	}
}

func TestWindowBeforeWrapExcludesDefaultFill(t *testing.T) {
	b := New(10)
	// Real zeros must still be returned; unwritten zeros must not.
	writeAll(b, 0, 0, 5)

	got := ExtractLatest(b, 0).AppendTo(nil)
	if !reflect.DeepEqual(got, []float64{0, 0, 5}) {
		t.Fatalf("unexpected window before wrap: %v", got)
	}
	got = ExtractLatest(b, 7).AppendTo(nil)
	if len(got) != 3 {
		t.Fatalf("expected request larger than written to be bounded, got %v", got)
	}
	if w := ExtractLatest(New(4), 0); w.Len() != 0 {
		t.Fatalf("expected empty window for empty ring, got %d", w.Len())
	}
}

func TestWindowSuffixRelationship(t *testing.T) {
	b := New(16)
	for i := 0; i < 37; i++ {
		b.Write(float64(i * i))
	}
	long := ExtractLatest(b, 12).AppendTo(nil)
	for n1 := 1; n1 < 12; n1++ {
		short := ExtractLatest(b, n1).AppendTo(nil)
		if !reflect.DeepEqual(short, long[len(long)-n1:]) {
			t.Fatalf("window %d is not a suffix of window 12: %v vs %v", n1, short, long)
		}
	}
}

func TestWindowSplitsIntoTwoViews(t *testing.T) {
	b := New(5)
	writeAll(b, 1, 2, 3, 4, 5, 6, 7)

	w := ExtractLatest(b, 4)
	if !reflect.DeepEqual(w.Older, []float64{4, 5}) || !reflect.DeepEqual(w.Newer, []float64{6, 7}) {
		t.Fatalf("unexpected split: older=%v newer=%v", w.Older, w.Newer)
	}
	if w.At(0) != 4 || w.At(3) != 7 {
		t.Fatalf("At mismatch: %v %v", w.At(0), w.At(3))
	}

	w = ExtractLatest(b, 2)
	if len(w.Older) != 0 || !reflect.DeepEqual(w.Newer, []float64{6, 7}) {
		t.Fatalf("expected single contiguous view, got older=%v newer=%v", w.Older, w.Newer)
	}
}

func TestExtractAtEarlierPosition(t *testing.T) {
	b := New(6)
	writeAll(b, 1, 2, 3)
	pos := b.Position()
	got := Extract(b, 2, pos).AppendTo(nil)
	if !reflect.DeepEqual(got, []float64{2, 3}) {
		t.Fatalf("unexpected window at position %+v: %v", pos, got)
	}
}

func TestLatestAndLen(t *testing.T) {
	b := New(3)
	if _, ok := b.Latest(); ok {
		t.Fatalf("expected no latest sample on empty ring")
	}
	writeAll(b, 1, 2, 3, 4)
	if v, ok := b.Latest(); !ok || v != 4 {
		t.Fatalf("Latest() = %v,%v want 4,true", v, ok)
	}
	if b.Len() != 3 || !b.Wrapped() {
		t.Fatalf("expected full wrapped ring, len=%d wrapped=%v", b.Len(), b.Wrapped())
	}
	if New(0).Cap() != 1 {
		t.Fatalf("expected capacity clamp to 1")
	}
}
