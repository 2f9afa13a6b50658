package qualiphy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wellora/telehealth-booking/internal/appointments"
	"github.com/wellora/telehealth-booking/internal/content"
	"github.com/wellora/telehealth-booking/internal/notify"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

// appointmentStore is the relational-store surface the reconciler needs.
type appointmentStore interface {
	FindByPatientExamID(ctx context.Context, patientExamID string) (*appointments.Appointment, error)
	FindLatestByEmailStatus(ctx context.Context, email string, status appointments.Status) (*appointments.Appointment, error)
	ApplyExamResult(ctx context.Context, id uuid.UUID, u appointments.ExamResultUpdate) error
	ApplyPrescription(ctx context.Context, id uuid.UUID, notes, prescriptionID string, details appointments.PrescriptionDetails) error
}

// contentStore is the content-store surface the reconciler needs.
type contentStore interface {
	ApplyExamResult(ctx context.Context, docID string, patch content.ExamResultPatch) error
	AppendNotes(ctx context.Context, docID, notes string) error
}

// Reconciler folds exam provider events into the appointment records. Each
// store update is attempted independently: a failure in one store is logged
// and does not roll back or retry the other.
type Reconciler struct {
	repo     appointmentStore
	content  contentStore
	notifier *notify.Service
	logger   *logging.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(repo appointmentStore, contentStore contentStore, notifier *notify.Service, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		repo:     repo,
		content:  contentStore,
		notifier: notifier,
		logger:   logger,
	}
}

// lookup is one candidate strategy for resolving the appointment an event
// refers to.
type lookup struct {
	name string
	find func(ctx context.Context) (*appointments.Appointment, error)
}

// resolve tries each lookup in order; the first match wins.
func (r *Reconciler) resolve(ctx context.Context, plan []lookup) (*appointments.Appointment, error) {
	for _, l := range plan {
		appt, err := l.find(ctx)
		if err == nil {
			r.logger.Debug("appointment resolved", "strategy", l.name, "appointment_id", appt.ID)
			return appt, nil
		}
		if !errors.Is(err, appointments.ErrNotFound) {
			return nil, fmt.Errorf("qualiphy: lookup %s: %w", l.name, err)
		}
	}
	return nil, appointments.ErrNotFound
}

// examLookupPlan matches by the provider's per-patient exam id, then falls
// back to the most recent scheduled appointment for the email.
func (r *Reconciler) examLookupPlan(evt ExamCompletedEvent) []lookup {
	return []lookup{
		{
			name: "by_patient_exam_id",
			find: func(ctx context.Context) (*appointments.Appointment, error) {
				if evt.PatientExamID == "" {
					return nil, appointments.ErrNotFound
				}
				return r.repo.FindByPatientExamID(ctx, evt.PatientExamID)
			},
		},
		{
			name: "latest_scheduled_by_email",
			find: func(ctx context.Context) (*appointments.Appointment, error) {
				if evt.PatientEmail == "" {
					return nil, appointments.ErrNotFound
				}
				return r.repo.FindLatestByEmailStatus(ctx, evt.PatientEmail, appointments.StatusScheduled)
			},
		},
	}
}

// prescriptionLookupPlan is the same shape, but the email fallback targets
// completed appointments since prescriptions follow finished consultations.
func (r *Reconciler) prescriptionLookupPlan(evt PrescriptionConfirmedEvent) []lookup {
	return []lookup{
		{
			name: "by_patient_exam_id",
			find: func(ctx context.Context) (*appointments.Appointment, error) {
				if evt.PatientExamID == "" {
					return nil, appointments.ErrNotFound
				}
				return r.repo.FindByPatientExamID(ctx, evt.PatientExamID)
			},
		},
		{
			name: "latest_completed_by_email",
			find: func(ctx context.Context) (*appointments.Appointment, error) {
				if evt.PatientEmail == "" {
					return nil, appointments.ErrNotFound
				}
				return r.repo.FindLatestByEmailStatus(ctx, evt.PatientEmail, appointments.StatusCompleted)
			},
		},
	}
}

// HandleExamCompleted records a consultation outcome in both stores.
func (r *Reconciler) HandleExamCompleted(ctx context.Context, evt ExamCompletedEvent) error {
	appt, err := r.resolve(ctx, r.examLookupPlan(evt))
	if err != nil {
		return err
	}

	status := appointments.StatusFromExam(evt.ExamStatus)
	notes := buildExamNotes(evt)
	completedAt := time.Now().UTC()

	if err := r.repo.ApplyExamResult(ctx, appt.ID, appointments.ExamResultUpdate{
		Status:        status,
		ExamStatus:    evt.ExamStatus,
		ProviderName:  evt.ProviderName,
		Notes:         notes,
		PatientExamID: evt.PatientExamID,
		CompletedAt:   completedAt,
	}); err != nil {
		r.logger.Error("relational exam update failed", "error", err, "appointment_id", appt.ID)
	}

	if appt.ContentDocID != "" {
		if err := r.content.ApplyExamResult(ctx, appt.ContentDocID, content.ExamResultPatch{
			Status:       string(status),
			ExamStatus:   evt.ExamStatus,
			ProviderName: evt.ProviderName,
			Notes:        notes,
			CompletedAt:  completedAt,
		}); err != nil {
			r.logger.Error("content exam update failed", "error", err, "content_doc_id", appt.ContentDocID)
		}
	}

	if status == appointments.StatusCompleted {
		if err := r.notifier.ConsultationCompleted(ctx, appt.UserEmail, appt.DisplayName, evt.ProviderName, completedAt); err != nil {
			r.logger.Warn("consultation email failed", "error", err, "user_email", appt.UserEmail)
		}
	}

	r.logger.Info("exam event reconciled",
		"appointment_id", appt.ID,
		"patient_exam_id", evt.PatientExamID,
		"exam_status", evt.ExamStatus,
		"status", status,
	)
	return nil
}

// HandlePrescriptionConfirmed records prescription details. The relational
// row gets the structured details; the content document only gets the notes
// text since its schema has no prescription field.
func (r *Reconciler) HandlePrescriptionConfirmed(ctx context.Context, evt PrescriptionConfirmedEvent) error {
	appt, err := r.resolve(ctx, r.prescriptionLookupPlan(evt))
	if err != nil {
		return err
	}

	details := appointments.PrescriptionDetails{
		DrugName:       evt.DrugName,
		Strength:       evt.Strength,
		Quantity:       evt.Quantity,
		Units:          evt.Units,
		Directions:     evt.Directions,
		DurationDays:   evt.DurationDays,
		Refills:        evt.Refills,
		PrescriptionID: evt.PrescriptionID,
		Schedule:       evt.Schedule,
	}
	notes := buildPrescriptionNotes(evt)

	if err := r.repo.ApplyPrescription(ctx, appt.ID, notes, evt.PrescriptionID, details); err != nil {
		r.logger.Error("relational prescription update failed", "error", err, "appointment_id", appt.ID)
	}

	if appt.ContentDocID != "" {
		if err := r.content.AppendNotes(ctx, appt.ContentDocID, notes); err != nil {
			r.logger.Error("content prescription update failed", "error", err, "content_doc_id", appt.ContentDocID)
		}
	}

	r.logger.Info("prescription event reconciled",
		"appointment_id", appt.ID,
		"prescription_id", evt.PrescriptionID,
		"drug_name", evt.DrugName,
	)
	return nil
}

// HandlePrescriptionTracking logs the tracking payload. There is no reliable
// key tying tracking events back to an appointment row, so nothing is
// persisted.
// TODO: persist tracking once the provider includes patient_exam_id in
// tracking payloads.
func (r *Reconciler) HandlePrescriptionTracking(ctx context.Context, evt PrescriptionTrackingEvent) {
	r.logger.Info("prescription tracking event received, no persistence path",
		"patient_email", evt.PatientEmail,
		"prescription_id", evt.PrescriptionID,
		"tracking_number", evt.TrackingNumber,
		"carrier", evt.Carrier,
		"shipment_status", evt.ShipmentStatus,
	)
}

func buildExamNotes(evt ExamCompletedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consultation completed by %s\n", evt.ProviderName)
	fmt.Fprintf(&b, "Exam status: %s\n", evt.ExamStatus)
	fmt.Fprintf(&b, "Exam ID: %s\n", evt.ExamID)
	fmt.Fprintf(&b, "Patient exam ID: %s\n", evt.PatientExamID)
	if len(evt.Questionnaire) > 0 {
		b.WriteString("\nQuestionnaire:\n")
		for _, qa := range evt.Questionnaire {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildPrescriptionNotes(evt PrescriptionConfirmedEvent) string {
	var b strings.Builder
	b.WriteString("Prescription confirmed\n")
	fmt.Fprintf(&b, "Drug: %s %s\n", evt.DrugName, evt.Strength)
	fmt.Fprintf(&b, "Quantity: %s %s\n", evt.Quantity, evt.Units)
	fmt.Fprintf(&b, "Directions: %s\n", evt.Directions)
	fmt.Fprintf(&b, "Duration: %d days\n", evt.DurationDays)
	fmt.Fprintf(&b, "Refills: %d\n", evt.Refills)
	fmt.Fprintf(&b, "Prescription ID: %s\n", evt.PrescriptionID)
	fmt.Fprintf(&b, "Schedule: %s", evt.Schedule)
	return b.String()
}
