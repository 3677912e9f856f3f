package web

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/emaruz/gridpulse/internal/sequence"
)

func TestStatusEndpointReturnsLastPublished(t *testing.T) {
	s := NewServer(log.New(io.Discard, "", 0))
	s.Publish(Status{
		FPS:        59.4,
		Bands:      map[string]float64{"bass": 0.7},
		Energy:     0.5,
		Cell:       sequence.Cell{Col: 3, Row: 1, Frame: 24},
		Compositor: "enhanced",
	})

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var got Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Cell.Frame != 24 || got.Bands["bass"] != 0.7 || got.Compositor != "enhanced" {
		t.Fatalf("got %+v", got)
	}
}

// The engine reuses one bands map across frames, so the server must not
// retain the caller's map: handlers encode the stored status after releasing
// the lock while the render loop keeps writing. Run with -race.
func TestPublishCopiesBandsMap(t *testing.T) {
	s := NewServer(log.New(io.Discard, "", 0))
	bands := map[string]float64{"bass": 0}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			bands["bass"] = float64(i) / 500
			s.Publish(Status{Bands: bands})
		}
	}()
	for i := 0; i < 500; i++ {
		rec := httptest.NewRecorder()
		s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	}
	wg.Wait()

	bands["bass"] = -1
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last.Bands["bass"] == -1 {
		t.Fatal("stored status aliases the caller's bands map")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewServer(log.New(io.Discard, "", 0))
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStartStopReleasesListener(t *testing.T) {
	s := NewServer(log.New(io.Discard, "", 0))
	s.Start(0)
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.srv != nil {
		t.Fatal("server handle not cleared")
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	s := NewServer(log.New(io.Discard, "", 0))
	for i := 0; i < 1000; i++ {
		s.Publish(Status{FPS: float64(i)})
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last.FPS != 999 {
		t.Fatalf("last fps=%f want 999", s.last.FPS)
	}
}
