package store

import (
	"testing"

	"github.com/sweeney/gasguard/internal/alert"
)

func TestDirectoryProfileContact(t *testing.T) {
	f := NewFakeStore()
	d := NewDirectory(f)

	// No profile at all.
	c, err := d.ProfileContact()
	if err != nil || c != nil {
		t.Fatalf("empty store: contact=%+v err=%v", c, err)
	}

	// A profile without any reachable endpoint is not a contact.
	f.Profile = &Profile{Name: "Owner", ManualAddress: "somewhere"}
	c, err = d.ProfileContact()
	if err != nil || c != nil {
		t.Fatalf("unreachable profile: contact=%+v err=%v", c, err)
	}

	f.Profile.Phone = "+100"
	c, err = d.ProfileContact()
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "Owner" || c.Phone != "+100" {
		t.Errorf("contact = %+v", c)
	}
}

func TestDirectoryContactsByKind(t *testing.T) {
	f := NewFakeStore()
	f.Contacts = []Contact{
		{Name: "Site", Phone: "+1", Kind: KindInternal},
		{Name: "Fire Brigade", URL: "generic://fire", Kind: KindExternal},
	}
	d := NewDirectory(f)

	internal, err := d.InternalContacts()
	if err != nil || len(internal) != 1 || internal[0].Name != "Site" {
		t.Errorf("internal = %+v err=%v", internal, err)
	}

	external, err := d.ExternalContacts()
	if err != nil || len(external) != 1 || external[0].URL != "generic://fire" {
		t.Errorf("external = %+v err=%v", external, err)
	}
}

func TestDirectoryMarkLatestNotified(t *testing.T) {
	f := NewFakeStore()
	f.CreateAlert(&Alert{Level: "LOW"})
	d := NewDirectory(f)

	if err := d.MarkLatestNotified(alert.LevelLow); err != nil {
		t.Fatal(err)
	}
	if !f.Alerts[0].Notified {
		t.Error("alert not marked through directory")
	}
}
