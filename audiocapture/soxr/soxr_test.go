package soxr

import (
	"errors"
	"math"
	"testing"
)

func TestResampleRatio(t *testing.T) {
	tests := []struct {
		name    string
		inRate  int
		outRate int
	}{
		{"48k_to_16k", 48000, 16000},
		{"44k1_to_16k", 44100, 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.inRate, tt.outRate)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer r.Close()

			block := tt.inRate / 10
			in := make([]float32, block)
			var total int
			for n := range 20 {
				for i := range in {
					x := float64(n*block+i) / float64(tt.inRate)
					in[i] = float32(0.5 * math.Sin(2*math.Pi*440*x))
				}
				out, err := r.Process(in)
				if err != nil {
					t.Fatalf("Process: %v", err)
				}
				for _, v := range out {
					if v < -1 || v > 1 {
						t.Fatalf("sample %v out of range", v)
					}
				}
				total += len(out)
			}

			want := 20 * tt.outRate / 10
			// Filter delay holds back some output until more input arrives.
			if total < want*8/10 || total > want*11/10 {
				t.Errorf("total output = %d, want about %d", total, want)
			}
		})
	}
}

func TestProcessAfterClose(t *testing.T) {
	r, err := New(48000, 16000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := r.Process([]float32{0}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Process after Close = %v, want ErrClosed", err)
	}
}

func TestFlushReturnsTail(t *testing.T) {
	r, err := New(48000, 16000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	var total int
	for range 5 {
		out, err := r.Process(in)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		total += len(out)
	}

	tail, err := r.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(tail) == 0 {
		t.Fatal("Flush returned no tail")
	}
	const want = 5 * 1600
	if got := total + len(tail); got < want*98/100 || got > want*102/100 {
		t.Errorf("output with tail = %d, want about %d", got, want)
	}

	if _, err := r.Process(in); !errors.Is(err, ErrClosed) {
		t.Errorf("Process after Flush = %v, want ErrClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close after Flush: %v", err)
	}
}
