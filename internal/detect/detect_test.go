package detect

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeQuery struct {
	mu      sync.Mutex
	sizes   []int64
	listing []string
	err     error
	calls   int
}

func (f *fakeQuery) DirectoryByteSize(ctx context.Context, dir string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	size := f.sizes[f.calls]
	f.calls++
	return size, nil
}

func (f *fakeQuery) PendingMarkerExists(ctx context.Context, dir, prefix string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, name := range f.listing {
		if strings.HasPrefix(name, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		method  string
		want    Kind
		wantErr bool
	}{
		{"size-growth", KindSizeGrowth, false},
		{"directory size increasing", KindSizeGrowth, false},
		{"pending-marker", KindPendingMarker, false},
		{".pending filename prefix", KindPendingMarker, false},
		{"  Pending-Marker ", KindPendingMarker, false},
		{"magic", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s, err := ParseStrategy(tt.method, "", 0)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStrategy) {
					t.Fatalf("Expected ErrUnknownStrategy, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Kind() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, s.Kind())
			}
		})
	}
}

func TestParseStrategyDefaults(t *testing.T) {
	s, _ := ParseStrategy("size-growth", "", 0)
	if s.(SizeGrowth).Interval != DefaultGrowthInterval {
		t.Errorf("Expected default interval, got %v", s.(SizeGrowth).Interval)
	}

	s, _ = ParseStrategy("pending-marker", "", 0)
	if s.(PendingMarker).Prefix != DefaultPendingPrefix {
		t.Errorf("Expected default prefix, got %q", s.(PendingMarker).Prefix)
	}

	s, _ = ParseStrategy("pending-marker", ".tmp", 0)
	if s.(PendingMarker).Prefix != ".tmp" {
		t.Errorf("Expected custom prefix, got %q", s.(PendingMarker).Prefix)
	}
}

func TestSizeGrowth(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int64
		want  bool
	}{
		{"growing", []int64{100, 150}, true},
		{"unchanged", []int64{150, 150}, false},
		{"shrinking", []int64{150, 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuery{sizes: tt.sizes}
			d, err := New(q, SizeGrowth{Interval: time.Millisecond}, "/sdcard/DCIM/OpenCamera/")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := d.IsRecording(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if q.calls != 2 {
				t.Errorf("Expected 2 size queries, got %d", q.calls)
			}
		})
	}
}

func TestSizeGrowthCancelledDuringWait(t *testing.T) {
	q := &fakeQuery{sizes: []int64{100, 150}}
	d, _ := New(q, SizeGrowth{Interval: time.Hour}, "/d")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.IsRecording(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestPendingMarker(t *testing.T) {
	tests := []struct {
		name    string
		listing []string
		want    bool
	}{
		{"pending file present", []string{".pending_001.mp4", "clip_000.mp4"}, true},
		{"no pending file", []string{"clip_000.mp4", "clip_001.mp4"}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuery{listing: tt.listing}
			d, _ := New(q, PendingMarker{Prefix: ".pending"}, "/d")
			got, err := d.IsRecording(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if q.calls != 1 {
				t.Errorf("Expected a single round trip, got %d", q.calls)
			}
		})
	}
}

func TestQueryErrorIsReturned(t *testing.T) {
	boom := errors.New("no device")
	for _, s := range []Strategy{SizeGrowth{Interval: time.Millisecond}, PendingMarker{Prefix: ".pending"}} {
		d, _ := New(&fakeQuery{err: boom}, s, "/d")
		if _, err := d.IsRecording(context.Background()); !errors.Is(err, boom) {
			t.Errorf("%s: expected query error, got %v", s.Kind(), err)
		}
	}
}

func TestNewRejectsMissingStrategy(t *testing.T) {
	if _, err := New(&fakeQuery{}, nil, "/d"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
}
