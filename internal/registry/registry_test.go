package registry

import "testing"

func TestClaimRefusesDuplicateMountpoint(t *testing.T) {
	r := New()

	guard, err := r.Claim("/live")
	if err != nil {
		t.Fatalf("first Claim failed: %v", err)
	}
	defer guard.Release()

	if _, err := r.Claim("/live"); err != ErrAlreadyLive {
		t.Fatalf("second Claim() error = %v, want ErrAlreadyLive", err)
	}
}

func TestStartingEntryInvisibleToLookup(t *testing.T) {
	r := New()
	guard, err := r.Claim("/live")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	defer guard.Release()

	if s := r.Lookup("/live"); s != nil {
		t.Fatal("Lookup should return nil while entry is Starting")
	}
}

func TestPromoteMakesStreamVisible(t *testing.T) {
	r := New()
	guard, err := r.Claim("/live")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	s := NewStream("/live", 16)
	r.Promote(guard, s)

	got := r.Lookup("/live")
	if got == nil {
		t.Fatal("Lookup should return the stream once Live")
	}
	if got.ID != s.ID {
		t.Errorf("Lookup returned a different stream id")
	}
	guard.Release()
}

func TestReleaseRemovesEntryRegardlessOfState(t *testing.T) {
	r := New()

	guard, err := r.Claim("/live")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	guard.Release()

	if s := r.Lookup("/live"); s != nil {
		t.Fatal("Lookup should return nil after guard release while Starting")
	}

	guard2, err := r.Claim("/live")
	if err != nil {
		t.Fatalf("re-Claim after release failed: %v", err)
	}
	s := NewStream("/live", 16)
	r.Promote(guard2, s)
	guard2.Release()

	if got := r.Lookup("/live"); got != nil {
		t.Fatal("Lookup should return nil after guard release while Live")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := New()
	guard, err := r.Claim("/live")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	guard.Release()
	guard.Release() // must not panic or affect a later claim
	if _, err := r.Claim("/live"); err != nil {
		t.Fatalf("Claim after double Release() failed: %v", err)
	}
}

func TestRejectedSourceAllowsImmediateRetry(t *testing.T) {
	r := New()

	guard, err := r.Claim("/same")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	// Simulated hook rejection: guard released without ever promoting.
	guard.Release()

	if _, err := r.Claim("/same"); err != nil {
		t.Fatalf("retry Claim immediately after rejection failed: %v", err)
	}
}

func TestMetadataSnapshotReflectsLatestUpdate(t *testing.T) {
	s := NewStream("/live", 16)

	if m := s.Metadata(); m.Artist != nil || m.Title != nil {
		t.Fatalf("initial metadata = %+v, want both fields nil", m)
	}

	artist, title := "A", "T"
	s.SetMetadata(Metadata{Artist: &artist, Title: &title})
	if m := s.Metadata(); m.Artist == nil || *m.Artist != "A" || m.Title == nil || *m.Title != "T" {
		t.Errorf("Metadata() = %+v, want {A T}", m)
	}
}

func TestMetadataLeavesUnsetFieldNil(t *testing.T) {
	s := NewStream("/live", 16)

	title := "T"
	s.SetMetadata(Metadata{Title: &title})
	if m := s.Metadata(); m.Artist != nil {
		t.Errorf("Artist = %v, want nil when never tagged", *m.Artist)
	}
}
