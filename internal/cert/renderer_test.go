package cert

import (
	"bytes"
	"image/jpeg"
	"sync"
	"testing"

	"raven-iq-service/internal/domain"
)

func sampleResult() domain.Result {
	return domain.Result{
		ID:         "123456789012",
		Score:      128,
		UserName:   "Alice Example",
		SubmitTime: 1700000000,
		Tier:       domain.TierCertificate,
	}
}

func TestRenderProducesDecodableJPEG(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	data, err := r.Render(sampleResult())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != canvasWidth || bounds.Dy() != canvasHeight {
		t.Fatalf("unexpected canvas size %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderIsCachedPerResult(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	result := sampleResult()

	first, err := r.Render(result)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := r.Render(result)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("cached render must return identical bytes")
	}
	if r.renders != 1 {
		t.Fatalf("expected a single draw, got %d", r.renders)
	}

	other := result
	other.ID = "999999999999"
	if _, err := r.Render(other); err != nil {
		t.Fatalf("render other: %v", err)
	}
	if r.renders != 2 {
		t.Fatalf("expected a draw per distinct result, got %d", r.renders)
	}
}

func TestConcurrentRendersCollapse(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	result := sampleResult()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Render(result); err != nil {
				t.Errorf("render: %v", err)
			}
		}()
	}
	wg.Wait()

	if r.renders != 1 {
		t.Fatalf("expected singleflight to collapse draws, got %d", r.renders)
	}
}

func TestFormatSerial(t *testing.T) {
	if got := formatSerial("123456789012"); got != "1234 5678 9012" {
		t.Fatalf("unexpected serial %q", got)
	}
	if got := formatSerial("abc"); got != "abc" {
		t.Fatalf("odd ids pass through, got %q", got)
	}
}
