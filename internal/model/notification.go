package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type NotificationType string

const (
	NotificationEmergency  NotificationType = "EMERGENCY"
	NotificationMedication NotificationType = "MEDICATION"
	NotificationSchedule   NotificationType = "SCHEDULE"
	NotificationActivity   NotificationType = "ACTIVITY"
	NotificationSystem     NotificationType = "SYSTEM"
)

// ParseNotificationType maps unknown values to SYSTEM.
func ParseNotificationType(raw string) NotificationType {
	switch t := NotificationType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case NotificationEmergency, NotificationMedication, NotificationSchedule, NotificationActivity:
		return t
	default:
		return NotificationSystem
	}
}

type Notification struct {
	ID         int64            `json:"id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	ElderID    *int64           `json:"elderId,omitempty"`
	TargetPath string           `json:"targetPath,omitempty"`
	IsRead     bool             `json:"isRead"`
	CreatedAt  Timestamp        `json:"createdAt"`
	ReadAt     *Timestamp       `json:"readAt,omitempty"`
}

type NotificationPage struct {
	Content       []Notification `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int64          `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}

type NotificationQuery struct {
	Page   int
	Size   int
	IsRead *bool
}

// Key identifies the query in the list cache.
func (q NotificationQuery) Key() string {
	read := "all"
	if q.IsRead != nil {
		read = strconv.FormatBool(*q.IsRead)
	}
	return fmt.Sprintf("page=%d|size=%d|isRead=%s", q.Page, q.Size, read)
}

func (q NotificationQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.IsRead != nil {
		v.Set("isRead", strconv.FormatBool(*q.IsRead))
	}
	return v
}
