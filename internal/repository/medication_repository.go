package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"medication-reminder/internal/model"
)

const (
	KeyMedicationName = "medication_name"
	KeyDosage         = "dosage"
	KeyFrequency      = "frequency"
	KeyTime           = "time"
)

// ErrDecode marks a stored value that cannot be turned back into a Medication.
var ErrDecode = errors.New("decode medication")

// DecodeError reports which stored key held an unusable value.
type DecodeError struct {
	Key   string
	Value string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode medication: invalid %s %q", e.Key, e.Value)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

type preferenceStore interface {
	GetAll(ctx context.Context) (map[string]string, error)
	PutAll(ctx context.Context, values map[string]string) error
}

// MedicationRepository persists exactly one medication: every Save replaces
// the previous record.
type MedicationRepository struct {
	prefs preferenceStore
}

func NewMedicationRepository(prefs *PreferenceRepository) *MedicationRepository {
	return &MedicationRepository{prefs: prefs}
}

// Load returns the saved medication, or nil when nothing complete was saved.
func (r *MedicationRepository) Load(ctx context.Context) (*model.Medication, error) {
	values, err := r.prefs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load medication: %w", err)
	}
	name, ok := values[KeyMedicationName]
	if !ok {
		return nil, nil
	}
	dosage, ok := values[KeyDosage]
	if !ok {
		return nil, nil
	}
	rawFrequency, ok := values[KeyFrequency]
	if !ok {
		return nil, nil
	}
	rawTime, ok := values[KeyTime]
	if !ok {
		return nil, nil
	}

	millis, err := strconv.ParseInt(rawTime, 10, 64)
	if err != nil {
		return nil, &DecodeError{Key: KeyTime, Value: rawTime}
	}
	if millis <= 0 {
		return nil, nil
	}

	frequency, ok := model.ParseFrequency(rawFrequency)
	if !ok {
		return nil, &DecodeError{Key: KeyFrequency, Value: rawFrequency}
	}

	return &model.Medication{
		Name:      name,
		Dosage:    dosage,
		Frequency: frequency,
		Time:      time.UnixMilli(millis),
	}, nil
}

// Save overwrites all four keys with m.
func (r *MedicationRepository) Save(ctx context.Context, m model.Medication) error {
	err := r.prefs.PutAll(ctx, map[string]string{
		KeyMedicationName: m.Name,
		KeyDosage:         m.Dosage,
		KeyFrequency:      m.Frequency.String(),
		KeyTime:           strconv.FormatInt(m.Time.UnixMilli(), 10),
	})
	if err != nil {
		return fmt.Errorf("save medication: %w", err)
	}
	return nil
}
