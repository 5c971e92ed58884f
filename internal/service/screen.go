package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"medication-reminder/internal/logging"
	"medication-reminder/internal/model"
)

var ErrItemNotFound = errors.New("medication not found")

// Gateway delivers a reminder text to the user.
type Gateway interface {
	Notify(ctx context.Context, message string)
}

// ItemChangedFunc runs right after an item mutation is committed.
type ItemChangedFunc func(ctx context.Context, m model.Medication) error

// Form holds the in-progress input fields.
type Form struct {
	Name      string
	Dosage    string
	Frequency model.Frequency
	Time      time.Time
}

func (f Form) Medication() model.Medication {
	return model.Medication{
		Name:      f.Name,
		Dosage:    f.Dosage,
		Frequency: f.Frequency,
		Time:      f.Time,
	}
}

// Screen is the state of the reminder screen: form cells, the frequency
// menu flag and the medication list. Every user action is one method call.
type Screen struct {
	mu            sync.Mutex
	form          Form
	menuOpen      bool
	store         *MedicationStore
	gateway       Gateway
	onItemChanged ItemChangedFunc
	log           logging.Logger
	now           func() time.Time
	loc           *time.Location
}

type ScreenOption func(*Screen)

func WithClock(now func() time.Time) ScreenOption {
	return func(s *Screen) { s.now = now }
}

// WithLocation sets the zone used to format times in messages.
func WithLocation(loc *time.Location) ScreenOption {
	return func(s *Screen) { s.loc = loc }
}

func NewScreen(store *MedicationStore, gateway Gateway, onItemChanged ItemChangedFunc, log logging.Logger, opts ...ScreenOption) *Screen {
	s := &Screen{
		store:         store,
		gateway:       gateway,
		onItemChanged: onItemChanged,
		log:           log,
		now:           time.Now,
		loc:           time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.form = s.emptyForm()
	return s
}

func (s *Screen) emptyForm() Form {
	return Form{Frequency: model.Daily, Time: s.now()}
}

func (s *Screen) Location() *time.Location {
	return s.loc
}

func (s *Screen) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Screen) MenuOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuOpen
}

func (s *Screen) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.List()
}

func (s *Screen) Item(id uuid.UUID) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.store.Get(id)
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (s *Screen) EditName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Name = name
}

func (s *Screen) EditDosage(dosage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Dosage = dosage
}

func (s *Screen) OpenFrequencyMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuOpen = true
}

func (s *Screen) CloseFrequencyMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuOpen = false
}

func (s *Screen) SelectFrequency(f model.Frequency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Frequency = f
	s.menuOpen = false
}

// Add appends the form as a new entry, persists it and resets the form.
// On a persistence error the entry stays in the list and the form is kept.
func (s *Screen) Add(ctx context.Context) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.store.Append(s.form.Medication())
	s.log.Info(ctx, "medication added", "id", item.ID, "name", item.Name, "frequency", item.Frequency)

	if err := s.onItemChanged(ctx, item.Medication); err != nil {
		return item, fmt.Errorf("persist added medication: %w", err)
	}

	s.form = s.emptyForm()
	return item, nil
}

// SetReminder notifies the user to take the medication a day after its time.
func (s *Screen) SetReminder(ctx context.Context, id uuid.UUID) (string, error) {
	s.mu.Lock()
	item, ok := s.store.Get(id)
	loc := s.loc
	s.mu.Unlock()
	if !ok {
		return "", ErrItemNotFound
	}

	message := ReminderMessage(item.Medication, loc)
	s.gateway.Notify(ctx, message)
	return message, nil
}

// MarkTaken records an intake: it notifies, lowers the dosage by one and
// persists the updated entry. A non-integer dosage leaves everything as is.
// The gateway is called without holding the screen lock.
func (s *Screen) MarkTaken(ctx context.Context, id uuid.UUID) (Item, error) {
	s.mu.Lock()
	item, ok := s.store.Get(id)
	now := s.now().In(s.loc)
	s.mu.Unlock()
	if !ok {
		return Item{}, ErrItemNotFound
	}
	dosage, err := DecrementDosage(item.Dosage)
	if err != nil {
		return item, err
	}

	s.log.Info(ctx, "medication taken", "entry", HistoryEntry(now, item.Medication))
	s.gateway.Notify(ctx, TakenMessage(item.Medication))

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := item.Medication
	updated.Dosage = dosage
	item, ok = s.store.Replace(id, updated)
	if !ok {
		return Item{}, ErrItemNotFound
	}

	if err := s.onItemChanged(ctx, item.Medication); err != nil {
		return item, fmt.Errorf("persist taken medication: %w", err)
	}
	return item, nil
}
