package main

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/floormesh/floormap"
	"github.com/kwv/floormesh/geometry"
)

// mappedApp returns an App that has committed one white triple.
func mappedApp(t *testing.T) *App {
	t.Helper()
	app := newTestApp(t)
	pose := floormap.Pose{Index: floormap.GridIndex{X: 4, Y: 4}, Heading: geometry.AngleFromDegrees(30)}
	if _, err := app.mapTriple(framesFor(t, app, opaqueWhite), pose); err != nil {
		t.Fatalf("mapTriple: %v", err)
	}
	return app
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_BeforeMapping(t *testing.T) {
	h := newHTTPServer(newTestApp(t))
	rec := get(t, h, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	var st serviceStatus
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Status != "ok" || st.Commits != 0 || st.Robot != nil || st.LastCommit != nil {
		t.Errorf("status = %+v", st)
	}
	if st.GridSize != [2]int{256, 256} {
		t.Errorf("GridSize = %v", st.GridSize)
	}
}

func TestHealth_AfterMapping(t *testing.T) {
	h := newHTTPServer(mappedApp(t))
	var st serviceStatus
	if err := json.NewDecoder(get(t, h, "/health").Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Commits != 1 || st.LastWritten == 0 || st.LastCommit == nil {
		t.Errorf("status = %+v", st)
	}
	if st.Robot == nil || *st.Robot != (floormap.GridIndex{X: 4, Y: 4}) {
		t.Errorf("robot = %v", st.Robot)
	}
	if st.Heading == nil || *st.Heading < 29.999 || *st.Heading > 30.001 {
		t.Errorf("heading = %v", st.Heading)
	}
}

func TestFloorEndpoints_Unavailable(t *testing.T) {
	h := newHTTPServer(newTestApp(t))
	for _, path := range []string{"/floor.png", "/floor.svg"} {
		rec := get(t, h, path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
		}
	}
}

func TestFloorPNG(t *testing.T) {
	h := newHTTPServer(mappedApp(t))

	rec := get(t, h, "/floor.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s", ct)
	}
	small, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = get(t, h, "/floor.png?scale=2&legend=false")
	if rec.Code != http.StatusOK {
		t.Fatalf("scaled status = %d", rec.Code)
	}
	big, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if big.Bounds().Dx() <= small.Bounds().Dx() {
		t.Errorf("scale=2 width %d not larger than %d", big.Bounds().Dx(), small.Bounds().Dx())
	}
}

func TestFloorPNG_BadScale(t *testing.T) {
	h := newHTTPServer(mappedApp(t))
	for _, q := range []string{"0", "17", "big"} {
		if rec := get(t, h, "/floor.png?scale="+q); rec.Code != http.StatusBadRequest {
			t.Errorf("scale=%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestFloorSVG(t *testing.T) {
	h := newHTTPServer(mappedApp(t))
	rec := get(t, h, "/floor.svg")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("body is not SVG")
	}
}
