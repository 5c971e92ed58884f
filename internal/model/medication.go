package model

import (
	"fmt"
	"time"
)

// Frequency describes how often a medication is taken.
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
)

// Frequencies lists every frequency in menu order.
var Frequencies = []Frequency{Daily, Weekly, Monthly}

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Label is the human-readable menu entry.
func (f Frequency) Label() string {
	switch f {
	case Weekly:
		return "每週"
	case Monthly:
		return "每月"
	default:
		return "每日"
	}
}

// ParseFrequency matches the stored name exactly, case included.
func ParseFrequency(s string) (Frequency, bool) {
	for _, f := range Frequencies {
		if f.String() == s {
			return f, true
		}
	}
	return Daily, false
}

// Medication is a single drug entry as typed into the form.
type Medication struct {
	Name      string
	Dosage    string
	Frequency Frequency
	Time      time.Time
}
