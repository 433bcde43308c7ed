package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mntlake/rustcast/internal/hooks"
	"github.com/mntlake/rustcast/internal/registry"
)

func TestExtractRequestFormat(t *testing.T) {
	tests := []struct {
		path       string
		wantFormat requestFormat
		wantMount  string
	}{
		{"/foo.mp3", formatMP3, "/foo"},
		{"/foo.json", formatJSON, "/foo"},
		{"/foo", formatMP3, "/foo"},
	}

	for _, tt := range tests {
		gotFormat, gotMount := extractRequestFormat(tt.path)
		if gotFormat != tt.wantFormat || gotMount != tt.wantMount {
			t.Errorf("extractRequestFormat(%q) = (%v, %q), want (%v, %q)",
				tt.path, gotFormat, gotMount, tt.wantFormat, tt.wantMount)
		}
	}
}

func TestMetadataEndpointReturnsSnapshotAfterUpdate(t *testing.T) {
	reg := registry.New()
	guard, err := reg.Claim("/live")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	stream := registry.NewStream("/live", 16)
	artist, title := "A", "T"
	stream.SetMetadata(registry.Metadata{Artist: &artist, Title: &title})
	reg.Promote(guard, stream)

	rt := &Router{Registry: reg, Hooks: hooks.New(hooks.Config{})}

	req := httptest.NewRequest(http.MethodGet, "/live.json", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body metadataResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Artist == nil || *body.Artist != "A" || body.Title == nil || *body.Title != "T" {
		t.Errorf("body = %+v, want {A T}", body)
	}
}

func TestMetadataEndpointSerializesAbsentFieldsAsNull(t *testing.T) {
	reg := registry.New()
	guard, err := reg.Claim("/live")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	stream := registry.NewStream("/live", 16)
	reg.Promote(guard, stream)

	rt := &Router{Registry: reg, Hooks: hooks.New(hooks.Config{})}

	req := httptest.NewRequest(http.MethodGet, "/live.json", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	const want = `{"artist":null,"title":null}` + "\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestMetadataEndpoint404sForAbsentMountpoint(t *testing.T) {
	rt := &Router{Registry: registry.New(), Hooks: hooks.New(hooks.Config{})}

	req := httptest.NewRequest(http.MethodGet, "/nope.json", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOtherMethodsAre405(t *testing.T) {
	rt := &Router{Registry: registry.New(), Hooks: hooks.New(hooks.Config{})}

	req := httptest.NewRequest(http.MethodPost, "/live", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
