package faceanalyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHTTPAnalyzer_RejectsInvalidScheme(t *testing.T) {
	if _, err := NewHTTPAnalyzer("ftp://example.com", time.Second, time.Second); err == nil {
		t.Error("expected error for non-http(s) scheme")
	}
}

func TestNewHTTPAnalyzer_RejectsMissingHost(t *testing.T) {
	if _, err := NewHTTPAnalyzer("http://", time.Second, time.Second); err == nil {
		t.Error("expected error for missing host")
	}
}

func TestDetectAndEmbed_ParsesFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces_count":1,"faces":[{"embedding":[0.1,0.2],"bbox":[10,20,110,220],"det_score":0.98}]}`))
	}))
	defer server.Close()

	analyzer, err := NewHTTPAnalyzer(server.URL, time.Second, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPAnalyzer: %v", err)
	}

	dets, err := analyzer.DetectAndEmbed(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	if err != nil {
		t.Fatalf("DetectAndEmbed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	d := dets[0]
	if d.BBoxX != 10 || d.BBoxY != 20 || d.BBoxWidth != 100 || d.BBoxHeight != 200 {
		t.Errorf("unexpected bbox: %+v", d)
	}
	if d.Confidence != 0.98 {
		t.Errorf("expected confidence 0.98, got %f", d.Confidence)
	}
}

func TestDetectAndEmbed_NoFacesIsEmptyNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces_count":0,"faces":[]}`))
	}))
	defer server.Close()

	analyzer, _ := NewHTTPAnalyzer(server.URL, time.Second, time.Second)

	dets, err := analyzer.DetectAndEmbed(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	if err != nil {
		t.Fatalf("DetectAndEmbed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("expected no detections, got %d", len(dets))
	}
}

func TestDetectAndEmbed_ServerErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	analyzer, _ := NewHTTPAnalyzer(server.URL, time.Second, time.Second)

	if _, err := analyzer.DetectAndEmbed(context.Background(), []byte{0xFF, 0xD8, 0xFF}); err == nil {
		t.Error("expected an error for a 500 response")
	}
}
