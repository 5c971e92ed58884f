package notify

import "context"

const (
	MedicationChannelID   = "medication_reminder"
	MedicationNotifyID    = 1
	medicationTitle       = "藥物提醒"
	medicationDescription = "藥物提醒通知"
	medicationIcon        = "💊"
)

// MedicationChannel is registered once at startup.
func MedicationChannel() Channel {
	return Channel{
		ID:          MedicationChannelID,
		Name:        medicationTitle,
		Description: medicationDescription,
		Importance:  ImportanceDefault,
	}
}

// MedicationGateway sends plain text messages as medication reminders.
// Every message reuses the same notification id.
type MedicationGateway struct {
	center *Center
}

func NewMedicationGateway(center *Center) *MedicationGateway {
	return &MedicationGateway{center: center}
}

func (g *MedicationGateway) Notify(ctx context.Context, message string) {
	g.center.Notify(ctx, Notification{
		ID:         MedicationNotifyID,
		ChannelID:  MedicationChannelID,
		Title:      medicationTitle,
		Icon:       medicationIcon,
		Body:       message,
		Priority:   PriorityDefault,
		AutoCancel: true,
	})
}
