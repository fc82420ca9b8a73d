// Package recipients holds the editable payee list used to build a batch.
//
// Sheet has value semantics: every transition returns a new Sheet and leaves
// the receiver untouched, so a rejected edit never leaves a half-applied list.
package recipients

import (
	"fmt"
	"strings"

	"github.com/vietddude/payroll/internal/core/domain"
)

// Entry is one row of the sheet.
type Entry struct {
	Recipient domain.Recipient `json:"recipient"`
	Selected  bool             `json:"selected"`
}

// Sheet is an ordered recipient list with a selection set. Addresses are
// unique, compared case-insensitively.
type Sheet struct {
	entries []Entry
}

// New builds a sheet from recipients, all selected. It fails on the first
// invalid or duplicate row.
func New(rs ...domain.Recipient) (Sheet, error) {
	var s Sheet
	for _, r := range rs {
		next, err := s.Add(r)
		if err != nil {
			return Sheet{}, err
		}
		s = next
	}
	return s, nil
}

// Len returns the number of rows.
func (s Sheet) Len() int { return len(s.entries) }

// Entries returns a copy of the rows in order.
func (s Sheet) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Recipients returns every recipient in order.
func (s Sheet) Recipients() []domain.Recipient {
	out := make([]domain.Recipient, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Recipient
	}
	return out
}

// Selected returns the selected recipients in sheet order.
func (s Sheet) Selected() []domain.Recipient {
	var out []domain.Recipient
	for _, e := range s.entries {
		if e.Selected {
			out = append(out, e.Recipient)
		}
	}
	return out
}

// Add appends r as a selected row.
func (s Sheet) Add(r domain.Recipient) (Sheet, error) {
	r = clean(r)
	if err := r.Validate(); err != nil {
		return s, err
	}
	if s.index(r.Address) >= 0 {
		return s, duplicate(r.Address)
	}
	next := s.clone(1)
	next.entries = append(next.entries, Entry{Recipient: r, Selected: true})
	return next, nil
}

// Update replaces the row for address with r, keeping its selection. The
// address itself may change as long as it stays unique.
func (s Sheet) Update(address string, r domain.Recipient) (Sheet, error) {
	i := s.index(address)
	if i < 0 {
		return s, notFound(address)
	}
	r = clean(r)
	if err := r.Validate(); err != nil {
		return s, err
	}
	if j := s.index(r.Address); j >= 0 && j != i {
		return s, duplicate(r.Address)
	}
	next := s.clone(0)
	next.entries[i].Recipient = r
	return next, nil
}

// Remove drops the row for address.
func (s Sheet) Remove(address string) (Sheet, error) {
	i := s.index(address)
	if i < 0 {
		return s, notFound(address)
	}
	next := Sheet{entries: make([]Entry, 0, len(s.entries)-1)}
	next.entries = append(next.entries, s.entries[:i]...)
	next.entries = append(next.entries, s.entries[i+1:]...)
	return next, nil
}

// Select marks the row for address as selected.
func (s Sheet) Select(address string) (Sheet, error) {
	return s.setSelected(address, true)
}

// Deselect clears the selection on the row for address.
func (s Sheet) Deselect(address string) (Sheet, error) {
	return s.setSelected(address, false)
}

// SelectAll selects every row.
func (s Sheet) SelectAll() Sheet {
	next := s.clone(0)
	for i := range next.entries {
		next.entries[i].Selected = true
	}
	return next
}

// ClearSelection deselects every row.
func (s Sheet) ClearSelection() Sheet {
	next := s.clone(0)
	for i := range next.entries {
		next.entries[i].Selected = false
	}
	return next
}

func (s Sheet) setSelected(address string, selected bool) (Sheet, error) {
	i := s.index(address)
	if i < 0 {
		return s, notFound(address)
	}
	next := s.clone(0)
	next.entries[i].Selected = selected
	return next, nil
}

func (s Sheet) index(address string) int {
	address = strings.TrimSpace(address)
	for i, e := range s.entries {
		if domain.SameAddress(e.Recipient.Address, address) {
			return i
		}
	}
	return -1
}

func (s Sheet) clone(extra int) Sheet {
	entries := make([]Entry, len(s.entries), len(s.entries)+extra)
	copy(entries, s.entries)
	return Sheet{entries: entries}
}

func clean(r domain.Recipient) domain.Recipient {
	return domain.Recipient{
		Address:   strings.TrimSpace(r.Address),
		AmountUSD: strings.TrimSpace(r.AmountUSD),
	}
}

func duplicate(address string) error {
	return domain.NewError(domain.KindValidation, "", fmt.Sprintf("recipient %s already exists", address), nil)
}

func notFound(address string) error {
	return domain.NewError(domain.KindValidation, "", fmt.Sprintf("recipient %s not found", address), nil)
}
