package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification type constants
const (
	NotifTypeReminder = "occurrence_reminder"
)

// DeviceToken is a push token registered for a member. Server only.
type DeviceToken struct {
	ID        uuid.UUID `json:"id"`
	MemberID  uuid.UUID `json:"memberID"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

type DeviceRegistration struct {
	MemberID uuid.UUID `json:"memberID"`
	Token    string    `json:"token"`
}

type DeviceDeletion struct {
	Token string `json:"token"`
}
