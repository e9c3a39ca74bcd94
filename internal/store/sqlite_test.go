package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gasguard.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateReadingAndAlert(t *testing.T) {
	s := openTestStore(t)

	r := &Reading{PPMA: 120.5, PPMB: 95.0, MaxPPM: 120.5, GasType: "LPG/Butane", Confidence: 60, Risk: "MEDIUM"}
	if err := s.CreateReading(r); err != nil {
		t.Fatalf("create reading: %v", err)
	}
	if r.ID == 0 {
		t.Fatal("reading ID not assigned")
	}

	a := &Alert{ReadingID: r.ID, Level: "LOW"}
	if err := s.CreateAlert(a); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	got, err := s.LatestAlert("LOW")
	if err != nil {
		t.Fatalf("latest alert: %v", err)
	}
	if got == nil || got.ID != a.ID || got.ReadingID != r.ID {
		t.Errorf("latest alert = %+v, want id %d reading %d", got, a.ID, r.ID)
	}
}

func TestLatestAlertPicksNewest(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.CreateAlert(&Alert{Level: "CRITICAL"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateAlert(&Alert{Level: "LOW"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestAlert("CRITICAL")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != 3 {
		t.Errorf("latest = %+v, want id 3", got)
	}
}

func TestMarkLatestNotified(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateAlert(&Alert{Level: "CRITICAL"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAlert(&Alert{Level: "CRITICAL"}); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkLatestNotified("CRITICAL"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	got, err := s.LatestAlert("CRITICAL")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Notified || got.NotifiedAt == nil {
		t.Errorf("latest alert not marked: %+v", got)
	}

	// Only the newest is marked.
	var first Alert
	if err := s.db.First(&first, 1).Error; err != nil {
		t.Fatal(err)
	}
	if first.Notified {
		t.Error("older alert was marked")
	}

	// Idempotent on the already-marked alert and on absent levels.
	if err := s.MarkLatestNotified("CRITICAL"); err != nil {
		t.Errorf("re-mark: %v", err)
	}
	if err := s.MarkLatestNotified("LOW"); err != nil {
		t.Errorf("mark absent level: %v", err)
	}
}

func TestContactsByKind(t *testing.T) {
	s := openTestStore(t)

	seed := []Contact{
		{Name: "Owner Sister", Phone: "+1", Kind: KindInternal},
		{Name: "Site Manager", Phone: "+2", Kind: KindInternal},
		{Name: "Fire Brigade", Phone: "+999", Kind: KindExternal},
	}
	for i := range seed {
		if err := s.db.Create(&seed[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	internal, err := s.ContactsByKind(KindInternal)
	if err != nil {
		t.Fatal(err)
	}
	if len(internal) != 2 {
		t.Errorf("internal = %d, want 2", len(internal))
	}

	external, err := s.ContactsByKind(KindExternal)
	if err != nil {
		t.Fatal(err)
	}
	if len(external) != 1 || external[0].Name != "Fire Brigade" {
		t.Errorf("external = %+v", external)
	}
}

func TestGetProfile(t *testing.T) {
	s := openTestStore(t)

	p, err := s.GetProfile()
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatalf("fresh database has a profile: %+v", p)
	}

	if err := s.db.Create(&Profile{Name: "Owner", Phone: "+1", ManualAddress: "12 Tank Farm Road"}).Error; err != nil {
		t.Fatal(err)
	}

	p, err = s.GetProfile()
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.ManualAddress != "12 Tank Farm Road" {
		t.Errorf("profile = %+v", p)
	}
}
