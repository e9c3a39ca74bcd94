package store

import "github.com/sweeney/gasguard/internal/alert"

// Directory adapts a Store to the notification gate's contact and
// alert-marking interfaces.
type Directory struct {
	s Store
}

// NewDirectory wraps a Store for the gate.
func NewDirectory(s Store) *Directory {
	return &Directory{s: s}
}

// ProfileContact returns the owner's contact, or nil if no profile with
// a reachable phone or URL exists.
func (d *Directory) ProfileContact() (*alert.Contact, error) {
	p, err := d.s.GetProfile()
	if err != nil {
		return nil, err
	}
	if p == nil || (p.Phone == "" && p.URL == "") {
		return nil, nil
	}
	return &alert.Contact{Name: p.Name, Phone: p.Phone, URL: p.URL}, nil
}

// InternalContacts returns household/site recipients.
func (d *Directory) InternalContacts() ([]alert.Contact, error) {
	return d.contacts(KindInternal)
}

// ExternalContacts returns emergency-service recipients.
func (d *Directory) ExternalContacts() ([]alert.Contact, error) {
	return d.contacts(KindExternal)
}

func (d *Directory) contacts(kind string) ([]alert.Contact, error) {
	rows, err := d.s.ContactsByKind(kind)
	if err != nil {
		return nil, err
	}
	out := make([]alert.Contact, 0, len(rows))
	for _, c := range rows {
		out = append(out, alert.Contact{Name: c.Name, Phone: c.Phone, URL: c.URL})
	}
	return out, nil
}

// MarkLatestNotified satisfies the gate's AlertMarker.
func (d *Directory) MarkLatestNotified(level alert.Level) error {
	return d.s.MarkLatestNotified(string(level))
}
