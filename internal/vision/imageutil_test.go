package vision

import (
	"image"
	"image/color"
	"testing"
)

func TestToGray(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, A: 255})

	gray := ToGray(img)

	if got := gray.GrayAt(0, 0).Y; got != 255 {
		t.Errorf("white pixel = %d, want 255", got)
	}
	// 0.299 * 255 = 76.2
	if got := gray.GrayAt(1, 0).Y; got < 75 || got > 77 {
		t.Errorf("red pixel = %d, want about 76", got)
	}
}

func TestFaceCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))

	tests := []struct {
		name    string
		rect    image.Rectangle
		wantErr bool
	}{
		{"inside", image.Rect(100, 100, 300, 300), false},
		{"partly outside", image.Rect(600, 400, 700, 500), false},
		{"fully outside", image.Rect(700, 500, 800, 600), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			crop, err := FaceCrop(img, tc.rect, 200)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FaceCrop() error = %v", err)
			}
			if crop.Bounds() != image.Rect(0, 0, 200, 200) {
				t.Errorf("crop bounds = %v, want 200x200", crop.Bounds())
			}
		})
	}
}

func TestEncodeDecodeImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	decoded, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 4 {
		t.Errorf("decoded bounds = %v", decoded.Bounds())
	}

	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestNewPigoDetector_InvalidCascade(t *testing.T) {
	if _, err := NewPigoDetector(nil, DetectorParams{}); err == nil {
		t.Error("expected error for empty cascade")
	}
	if _, err := LoadPigoDetector("/nonexistent/facefinder", DetectorParams{}); err == nil {
		t.Error("expected error for missing cascade file")
	}
}

func TestStubsReportUnavailable(t *testing.T) {
	if !DlibAvailable() {
		if _, err := NewDlibExtractor("models"); err == nil {
			t.Error("expected dlib extractor to be unavailable")
		}
	}
	if !OpenCVAvailable() {
		if err := NewOpenCVClassifier().Train(nil); err == nil {
			t.Error("expected OpenCV classifier to be unavailable")
		}
	}
}
