package qualiphy

import (
	"encoding/json"
	"fmt"
)

// EventType is the numeric discriminant on inbound webhook payloads.
type EventType int

const (
	EventExamCompleted         EventType = 1
	EventPrescriptionConfirmed EventType = 2
	EventPrescriptionTracking  EventType = 3
)

// Event is the tagged union of webhook payload shapes. Decoding produces
// exactly one variant per discriminant; unknown discriminants surface as
// *UnknownEventError so callers handle them explicitly instead of dropping
// them on the floor.
type Event interface {
	Type() EventType
}

// QuestionAnswer is one entry of the consultation questionnaire transcript.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ExamCompletedEvent reports a finished consultation (event 1).
type ExamCompletedEvent struct {
	ExamID        string           `json:"exam_id"`
	PatientExamID string           `json:"patient_exam_id"`
	PatientEmail  string           `json:"patient_email"`
	PatientName   string           `json:"patient_name"`
	ProviderName  string           `json:"provider_name"`
	ExamStatus    string           `json:"exam_status"`
	Questionnaire []QuestionAnswer `json:"questionnaire"`
}

func (ExamCompletedEvent) Type() EventType { return EventExamCompleted }

// PrescriptionConfirmedEvent reports a prescription written after a
// consultation (event 2).
type PrescriptionConfirmedEvent struct {
	PatientExamID  string `json:"patient_exam_id"`
	PatientEmail   string `json:"patient_email"`
	DrugName       string `json:"drug_name"`
	Strength       string `json:"strength"`
	Quantity       string `json:"quantity"`
	Units          string `json:"units"`
	Directions     string `json:"directions"`
	DurationDays   int    `json:"duration_days"`
	Refills        int    `json:"refills"`
	PrescriptionID string `json:"prescription_id"`
	Schedule       string `json:"schedule"`
}

func (PrescriptionConfirmedEvent) Type() EventType { return EventPrescriptionConfirmed }

// PrescriptionTrackingEvent reports shipment tracking for a prescription
// (event 3). No field in the payload reliably ties it back to an appointment
// row, so it has no persistence path and is logged only.
type PrescriptionTrackingEvent struct {
	PatientEmail   string `json:"patient_email"`
	PrescriptionID string `json:"prescription_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	ShipmentStatus string `json:"shipment_status"`
}

func (PrescriptionTrackingEvent) Type() EventType { return EventPrescriptionTracking }

// UnknownEventError reports a discriminant this handler does not know.
type UnknownEventError struct {
	Discriminant int
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("qualiphy: unknown event discriminant %d", e.Discriminant)
}

// ParseEvent decodes a webhook payload into its variant.
func ParseEvent(payload []byte) (Event, error) {
	var envelope struct {
		Event int `json:"event"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("qualiphy: decode envelope: %w", err)
	}

	switch EventType(envelope.Event) {
	case EventExamCompleted:
		var evt ExamCompletedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("qualiphy: decode exam completed: %w", err)
		}
		return evt, nil
	case EventPrescriptionConfirmed:
		var evt PrescriptionConfirmedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("qualiphy: decode prescription confirmed: %w", err)
		}
		return evt, nil
	case EventPrescriptionTracking:
		var evt PrescriptionTrackingEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("qualiphy: decode prescription tracking: %w", err)
		}
		return evt, nil
	default:
		return nil, &UnknownEventError{Discriminant: envelope.Event}
	}
}
