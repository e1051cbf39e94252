package bundle

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestParse_Fixture(t *testing.T) {
	data, err := os.ReadFile("../../testdata/jane_doe.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	p := res.Records.Patient
	if p == nil {
		t.Fatal("expected a patient record")
	}
	if p.ID != "p1" {
		t.Errorf("patient ID: got %q, want p1", p.ID)
	}
	if p.Name != "Jane Doe" {
		t.Errorf("patient name: got %q, want Jane Doe", p.Name)
	}
	if p.Gender == nil || *p.Gender != "female" {
		t.Errorf("gender: got %v", p.Gender)
	}
	if p.BirthDate == nil || p.BirthDate.Format(time.DateOnly) != "1987-06-15" {
		t.Errorf("birth date: got %v", p.BirthDate)
	}
	if len(p.Address) == 0 {
		t.Error("expected address blob to be preserved")
	}
	if p.Phone == nil || *p.Phone != "555-0134" {
		t.Errorf("phone: got %v", p.Phone)
	}
	if p.MaritalStatus == nil || *p.MaritalStatus != "Never Married" {
		t.Errorf("marital status: got %v", p.MaritalStatus)
	}

	if len(res.Records.Conditions) != 1 {
		t.Fatalf("conditions: got %d, want 1", len(res.Records.Conditions))
	}
	cond := res.Records.Conditions[0]
	if cond.PatientID != "p1" {
		t.Errorf("condition patient_id: got %q, want p1 (urn reference reduction)", cond.PatientID)
	}
	if cond.Condition != "Asthma" {
		t.Errorf("condition: got %q, want Asthma", cond.Condition)
	}
	if cond.OnsetDate == nil || cond.OnsetDate.Format(time.DateOnly) != "2020-01-01" {
		t.Errorf("onset date: got %v", cond.OnsetDate)
	}
	if cond.AbatementDate != nil {
		t.Errorf("abatement date: got %v, want nil (ongoing)", cond.AbatementDate)
	}

	if len(res.Records.Medications) != 1 {
		t.Fatalf("medications: got %d, want 1", len(res.Records.Medications))
	}
	med := res.Records.Medications[0]
	if med.PatientID != "p1" {
		t.Errorf("medication patient_id: got %q, want p1 (path reference reduction)", med.PatientID)
	}
	if med.Medication != "Albuterol" {
		t.Errorf("medication: got %q, want Albuterol", med.Medication)
	}
	if med.Status == nil || *med.Status != "active" {
		t.Errorf("status: got %v", med.Status)
	}
	if med.Dosage == nil || *med.Dosage != "2 puffs every 4 hours as needed" {
		t.Errorf("dosage: got %v", med.Dosage)
	}
	if med.EndDate != nil {
		t.Errorf("end date: got %v, want nil", med.EndDate)
	}

	if len(res.Records.Encounters) != 0 {
		t.Errorf("encounters: got %d, want 0", len(res.Records.Encounters))
	}
	// The Observation entry is an unrecognized kind.
	if res.Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", res.Skipped)
	}
	if res.Dropped != 0 {
		t.Errorf("dropped: got %d, want 0", res.Dropped)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"resourceType": "Bundle", "entry": [`))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestParse_NotABundle(t *testing.T) {
	_, err := Parse([]byte(`{"resourceType": "Patient", "id": "p1"}`))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError for non-bundle document, got %v", err)
	}
}

func TestParse_EmptyBundle(t *testing.T) {
	res, err := Parse([]byte(`{"resourceType": "Bundle", "entry": []}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.Records.Empty() {
		t.Error("expected an empty record set")
	}
	if res.Records.Patient != nil {
		t.Error("expected nil patient")
	}
}

func TestParse_UnrecognizedKindsIgnored(t *testing.T) {
	res, err := Parse([]byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "DiagnosticReport"}},
			{"resource": {"resourceType": "Immunization"}}
		]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Skipped != 2 {
		t.Errorf("skipped: got %d, want 2", res.Skipped)
	}
	if !res.Records.Empty() {
		t.Error("expected an empty record set")
	}
}

func TestParse_DefaultDisplayText(t *testing.T) {
	res, err := Parse([]byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "Condition", "subject": {"reference": "Patient/p1"}}},
			{"resource": {"resourceType": "MedicationRequest", "subject": {"reference": "Patient/p1"}}},
			{"resource": {"resourceType": "Encounter", "subject": {"reference": "Patient/p1"}}}
		]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Records.Conditions[0].Condition; got != UnknownCondition {
		t.Errorf("condition display: got %q, want %q", got, UnknownCondition)
	}
	if res.Records.Conditions[0].ConditionCode != nil {
		t.Errorf("condition code: got %v, want nil", res.Records.Conditions[0].ConditionCode)
	}
	if got := res.Records.Medications[0].Medication; got != UnknownMedication {
		t.Errorf("medication display: got %q, want %q", got, UnknownMedication)
	}
	if got := res.Records.Encounters[0].EncounterType; got != UnknownEncounter {
		t.Errorf("encounter type: got %q, want %q", got, UnknownEncounter)
	}
}

func TestParse_MissingReferenceDropsEntry(t *testing.T) {
	res, err := Parse([]byte(`{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "Condition", "code": {"coding": [{"display": "Asthma"}]}}},
			{"resource": {"resourceType": "Condition", "subject": {"reference": "Patient/"}, "code": {"coding": [{"display": "Asthma"}]}}}
		]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Records.Conditions) != 0 {
		t.Errorf("conditions: got %d, want 0", len(res.Records.Conditions))
	}
	if res.Dropped != 2 {
		t.Errorf("dropped: got %d, want 2", res.Dropped)
	}
}

func TestParse_PatientWithoutName(t *testing.T) {
	res, err := Parse([]byte(`{
		"resourceType": "Bundle",
		"entry": [{"resource": {"resourceType": "Patient", "id": "p9"}}]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Records.Patient.Name != "Unknown" {
		t.Errorf("name: got %q, want Unknown", res.Records.Patient.Name)
	}
	if res.Records.Patient.Gender != nil {
		t.Errorf("gender: got %v, want nil", res.Records.Patient.Gender)
	}
}
