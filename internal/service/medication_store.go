package service

import (
	"github.com/google/uuid"

	"medication-reminder/internal/model"
)

// Item is a list entry. The ID lives only in memory and lets the UI address
// one card among equal-looking medications.
type Item struct {
	ID uuid.UUID
	model.Medication
}

// MedicationStore is the ordered, append-only list shown on screen.
// It is not safe for concurrent use; Screen serialises access.
type MedicationStore struct {
	items []Item
}

func NewMedicationStore(seed ...model.Medication) *MedicationStore {
	s := &MedicationStore{}
	for _, m := range seed {
		s.Append(m)
	}
	return s
}

func (s *MedicationStore) Append(m model.Medication) Item {
	item := Item{ID: uuid.New(), Medication: m}
	s.items = append(s.items, item)
	return item
}

func (s *MedicationStore) Get(id uuid.UUID) (Item, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Replace swaps the medication of an existing entry, keeping its position.
func (s *MedicationStore) Replace(id uuid.UUID, m model.Medication) (Item, bool) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Medication = m
			return s.items[i], true
		}
	}
	return Item{}, false
}

func (s *MedicationStore) List() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *MedicationStore) Len() int {
	return len(s.items)
}
