package audioconv

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sine(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return out
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	in := sine(SampleRate / 2)
	if err := EncodeWAV(f, in); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	f.Close()

	out, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("ConvertFileToPCM16k: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if d := math.Abs(float64(out[i] - in[i])); d > 1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}

	capped, err := ConvertFileToPCM16k(context.Background(), path, Options{MaxSamples: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 100 {
		t.Errorf("MaxSamples: len = %d", len(capped))
	}
}

func TestSniffWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EncodeWAV(f, sine(1600)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("sniffed decode: %v", err)
	}
	if len(out) != 1600 {
		t.Errorf("len = %d", len(out))
	}
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "empty.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := EncodeWAV(f, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDownmixInterleaved(t *testing.T) {
	got := downmixInterleaved([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 0, -1, 0, 1}

	down := resampleLinear(in, 48000, SampleRate)
	if len(down) != 2 {
		t.Fatalf("48k->16k len = %d, want 2", len(down))
	}
	if down[0] != 0 || down[1] != -1 {
		t.Errorf("48k->16k = %v", down)
	}

	up := resampleLinear([]float32{0, 1}, 8000, SampleRate)
	if len(up) != 4 || up[1] != 0.5 {
		t.Errorf("8k->16k = %v", up)
	}

	if same := resampleLinear(in, SampleRate, SampleRate); &same[0] != &in[0] {
		t.Error("equal rates should return input unchanged")
	}
}
