package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"medication-reminder/internal/model"
)

// DisplayLayout is used for every timestamp shown to the user.
const DisplayLayout = "2006-01-02 15:04"

// ErrFormat marks a dosage that is not an integer literal.
var ErrFormat = errors.New("dosage is not an integer")

type FormatError struct {
	Dosage string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("dosage %q is not an integer", e.Dosage)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// ReminderMessage asks the user to take m one calendar day after m.Time.
func ReminderMessage(m model.Medication, loc *time.Location) string {
	next := m.Time.In(loc).AddDate(0, 0, 1)
	return fmt.Sprintf("請在%s 時服用藥物 %s 剩餘藥量:%s", next.Format(DisplayLayout), m.Name, m.Dosage)
}

func TakenMessage(m model.Medication) string {
	return "已服用藥物: " + m.Name
}

func HistoryEntry(now time.Time, m model.Medication) string {
	return fmt.Sprintf("%s - %s", now.Format(DisplayLayout), m.Name)
}

// DecrementDosage parses dosage as a 32-bit integer and returns it minus one.
// The result may be negative; the smallest int32 wraps around to the largest.
func DecrementDosage(dosage string) (string, error) {
	n, err := strconv.ParseInt(dosage, 10, 32)
	if err != nil {
		return "", &FormatError{Dosage: dosage}
	}
	return strconv.FormatInt(int64(int32(n)-1), 10), nil
}
