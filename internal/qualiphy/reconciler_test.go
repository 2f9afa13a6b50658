package qualiphy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/wellora/telehealth-booking/internal/appointments"
	"github.com/wellora/telehealth-booking/internal/content"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

type stubApptStore struct {
	byExamID      *appointments.Appointment
	byEmailStatus map[appointments.Status]*appointments.Appointment
	emailLookups  []appointments.Status

	examUpdate         *appointments.ExamResultUpdate
	prescriptionNotes  string
	prescriptionID     string
	prescriptionDetail *appointments.PrescriptionDetails
}

func (s *stubApptStore) FindByPatientExamID(_ context.Context, patientExamID string) (*appointments.Appointment, error) {
	if s.byExamID == nil {
		return nil, appointments.ErrNotFound
	}
	return s.byExamID, nil
}

func (s *stubApptStore) FindLatestByEmailStatus(_ context.Context, email string, status appointments.Status) (*appointments.Appointment, error) {
	s.emailLookups = append(s.emailLookups, status)
	if appt, ok := s.byEmailStatus[status]; ok {
		return appt, nil
	}
	return nil, appointments.ErrNotFound
}

func (s *stubApptStore) ApplyExamResult(_ context.Context, id uuid.UUID, u appointments.ExamResultUpdate) error {
	s.examUpdate = &u
	return nil
}

func (s *stubApptStore) ApplyPrescription(_ context.Context, id uuid.UUID, notes, prescriptionID string, details appointments.PrescriptionDetails) error {
	s.prescriptionNotes = notes
	s.prescriptionID = prescriptionID
	s.prescriptionDetail = &details
	return nil
}

type stubContentStore struct {
	examPatches []content.ExamResultPatch
	appended    []string
}

func (s *stubContentStore) ApplyExamResult(_ context.Context, docID string, patch content.ExamResultPatch) error {
	s.examPatches = append(s.examPatches, patch)
	return nil
}

func (s *stubContentStore) AppendNotes(_ context.Context, docID, notes string) error {
	s.appended = append(s.appended, notes)
	return nil
}

func testAppointment(docID string) *appointments.Appointment {
	return &appointments.Appointment{
		ID:           uuid.New(),
		UserEmail:    "pat@example.com",
		DisplayName:  "Pat",
		ContentDocID: docID,
		Status:       appointments.StatusScheduled,
	}
}

func examEvent(status string) ExamCompletedEvent {
	return ExamCompletedEvent{
		ExamID:        "exam-42",
		PatientExamID: "pe-1",
		PatientEmail:  "pat@example.com",
		PatientName:   "Pat Doe",
		ProviderName:  "Dr. Chen",
		ExamStatus:    status,
		Questionnaire: []QuestionAnswer{{Question: "Allergies?", Answer: "None"}},
	}
}

func TestHandleExamCompleted_Approved(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("doc-1")}
	contentStore := &stubContentStore{}
	r := NewReconciler(repo, contentStore, nil, logging.Default())

	if err := r.HandleExamCompleted(context.Background(), examEvent("Approved")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.examUpdate == nil {
		t.Fatal("expected relational update")
	}
	if repo.examUpdate.Status != appointments.StatusCompleted {
		t.Fatalf("expected completed status, got %q", repo.examUpdate.Status)
	}
	if repo.examUpdate.ExamStatus != "Approved" || repo.examUpdate.PatientExamID != "pe-1" {
		t.Fatalf("unexpected update: %+v", repo.examUpdate)
	}
	if len(contentStore.examPatches) != 1 {
		t.Fatalf("expected content update, got %d", len(contentStore.examPatches))
	}
	// Both stores must land on the same status value.
	if contentStore.examPatches[0].Status != string(repo.examUpdate.Status) {
		t.Fatalf("status diverged between stores: %q vs %q",
			contentStore.examPatches[0].Status, repo.examUpdate.Status)
	}
}

func TestHandleExamCompleted_Deferred(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("doc-1")}
	r := NewReconciler(repo, &stubContentStore{}, nil, logging.Default())

	if err := r.HandleExamCompleted(context.Background(), examEvent("Deferred")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.examUpdate.Status != appointments.StatusDeferred {
		t.Fatalf("expected deferred status, got %q", repo.examUpdate.Status)
	}
}

func TestHandleExamCompleted_UnrecognizedStatusCompletes(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("doc-1")}
	r := NewReconciler(repo, &stubContentStore{}, nil, logging.Default())

	if err := r.HandleExamCompleted(context.Background(), examEvent("N/A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.examUpdate.Status != appointments.StatusCompleted {
		t.Fatalf("expected completed fallback, got %q", repo.examUpdate.Status)
	}
}

func TestHandleExamCompleted_EmailFallbackUsesScheduled(t *testing.T) {
	appt := testAppointment("doc-1")
	repo := &stubApptStore{byEmailStatus: map[appointments.Status]*appointments.Appointment{
		appointments.StatusScheduled: appt,
	}}
	r := NewReconciler(repo, &stubContentStore{}, nil, logging.Default())

	if err := r.HandleExamCompleted(context.Background(), examEvent("Approved")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.emailLookups) != 1 || repo.emailLookups[0] != appointments.StatusScheduled {
		t.Fatalf("expected scheduled email fallback, got %v", repo.emailLookups)
	}
	if repo.examUpdate == nil {
		t.Fatal("expected relational update via fallback match")
	}
}

func TestHandleExamCompleted_NoMatch(t *testing.T) {
	repo := &stubApptStore{}
	r := NewReconciler(repo, &stubContentStore{}, nil, logging.Default())

	err := r.HandleExamCompleted(context.Background(), examEvent("Approved"))
	if !errors.Is(err, appointments.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if repo.examUpdate != nil {
		t.Fatal("expected no update without a match")
	}
}

func TestHandleExamCompleted_NotesCarryTranscript(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("doc-1")}
	r := NewReconciler(repo, &stubContentStore{}, nil, logging.Default())

	if err := r.HandleExamCompleted(context.Background(), examEvent("Approved")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notes := repo.examUpdate.Notes
	for _, want := range []string{"Dr. Chen", "Approved", "exam-42", "pe-1", "Q: Allergies?", "A: None"} {
		if !strings.Contains(notes, want) {
			t.Fatalf("expected notes to contain %q, got:\n%s", want, notes)
		}
	}
}

func TestHandleExamCompleted_NoContentDoc(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("")}
	contentStore := &stubContentStore{}
	r := NewReconciler(repo, contentStore, nil, logging.Default())

	if err := r.HandleExamCompleted(context.Background(), examEvent("Approved")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contentStore.examPatches) != 0 {
		t.Fatal("expected no content update without a linked document")
	}
}

func TestHandlePrescriptionConfirmed(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("doc-1")}
	contentStore := &stubContentStore{}
	r := NewReconciler(repo, contentStore, nil, logging.Default())

	evt := PrescriptionConfirmedEvent{
		PatientExamID:  "pe-1",
		PatientEmail:   "pat@example.com",
		DrugName:       "Semaglutide",
		Strength:       "0.25mg",
		Quantity:       "4",
		Units:          "doses",
		Directions:     "Inject weekly",
		DurationDays:   28,
		Refills:        2,
		PrescriptionID: "rx-9",
		Schedule:       "weekly",
	}
	if err := r.HandlePrescriptionConfirmed(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.prescriptionID != "rx-9" {
		t.Fatalf("expected prescription id persisted, got %q", repo.prescriptionID)
	}
	if repo.prescriptionDetail.DrugName != "Semaglutide" || repo.prescriptionDetail.Refills != 2 {
		t.Fatalf("unexpected details: %+v", repo.prescriptionDetail)
	}
	for _, want := range []string{"Semaglutide", "0.25mg", "Inject weekly", "28 days", "rx-9"} {
		if !strings.Contains(repo.prescriptionNotes, want) {
			t.Fatalf("expected notes to contain %q, got:\n%s", want, repo.prescriptionNotes)
		}
	}
	if len(contentStore.appended) != 1 {
		t.Fatalf("expected content note append, got %d", len(contentStore.appended))
	}
}

func TestHandlePrescriptionConfirmed_EmailFallbackUsesCompleted(t *testing.T) {
	appt := testAppointment("doc-1")
	appt.Status = appointments.StatusCompleted
	repo := &stubApptStore{byEmailStatus: map[appointments.Status]*appointments.Appointment{
		appointments.StatusCompleted: appt,
	}}
	r := NewReconciler(repo, &stubContentStore{}, nil, logging.Default())

	evt := PrescriptionConfirmedEvent{PatientEmail: "pat@example.com", PrescriptionID: "rx-9"}
	if err := r.HandlePrescriptionConfirmed(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.emailLookups) != 1 || repo.emailLookups[0] != appointments.StatusCompleted {
		t.Fatalf("expected completed email fallback, got %v", repo.emailLookups)
	}
}

func TestHandlePrescriptionTracking_NoPersistence(t *testing.T) {
	repo := &stubApptStore{byExamID: testAppointment("doc-1")}
	contentStore := &stubContentStore{}
	r := NewReconciler(repo, contentStore, nil, logging.Default())

	r.HandlePrescriptionTracking(context.Background(), PrescriptionTrackingEvent{
		PatientEmail:   "pat@example.com",
		PrescriptionID: "rx-9",
		TrackingNumber: "1Z999",
	})
	if repo.examUpdate != nil || repo.prescriptionDetail != nil || len(contentStore.appended) != 0 {
		t.Fatal("expected tracking event to persist nothing")
	}
}
