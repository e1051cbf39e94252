package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/gyeh/careview/internal/model"
	"github.com/gyeh/careview/internal/normalize"
)

// Default display text stored when a source entry omits a coded display.
const (
	UnknownCondition  = "Unknown Condition"
	UnknownMedication = "Unknown Medication"
	UnknownEncounter  = "Unknown"
)

// ParseError indicates the input bytes are not a well-formed bundle document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse bundle: %s", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result is the parser output: the normalized record set plus diagnostics
// about entries the parser could not use.
type Result struct {
	Records model.RecordSet
	Skipped int // entries of unrecognized resource kinds
	Dropped int // child entries whose subject reference reduced to nothing
}

// Parse converts raw bundle bytes into a normalized record set. It fails
// with *ParseError when the bytes are not a well-formed bundle document; a
// bundle with zero recognized entries is not an error and yields an empty
// set with a nil patient. Child entries whose subject reference carries no
// ID are dropped and counted rather than written with an empty join key.
func Parse(data []byte) (*Result, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc.ResourceType != "Bundle" {
		return nil, &ParseError{Err: fmt.Errorf("resourceType %q is not a Bundle", doc.ResourceType)}
	}

	res := &Result{}
	for _, ent := range doc.Entry {
		if len(ent.Resource) == 0 {
			res.Skipped++
			continue
		}
		var h header
		if err := json.Unmarshal(ent.Resource, &h); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("entry resource: %w", err)}
		}

		switch h.ResourceType {
		case kindPatient:
			p, err := parsePatient(ent.Resource)
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			res.Records.Patient = p
		case kindCondition:
			rec, ok, err := parseCondition(ent.Resource)
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			if !ok {
				res.Dropped++
				continue
			}
			res.Records.Conditions = append(res.Records.Conditions, rec)
		case kindMedicationRequest:
			rec, ok, err := parseMedicationRequest(ent.Resource)
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			if !ok {
				res.Dropped++
				continue
			}
			res.Records.Medications = append(res.Records.Medications, rec)
		case kindEncounter:
			rec, ok, err := parseEncounter(ent.Resource)
			if err != nil {
				return nil, &ParseError{Err: err}
			}
			if !ok {
				res.Dropped++
				continue
			}
			res.Records.Encounters = append(res.Records.Encounters, rec)
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func parsePatient(raw json.RawMessage) (*model.PatientRecord, error) {
	var r patientResource
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("patient entry: %w", err)
	}

	var given, family string
	if len(r.Name) > 0 {
		family = r.Name[0].Family
		if len(r.Name[0].Given) > 0 {
			given = r.Name[0].Given[0]
		}
	}

	p := &model.PatientRecord{
		ID:        r.ID,
		Name:      normalize.DisplayName(given, family),
		Gender:    optStr(r.Gender),
		BirthDate: normalize.ParseDate(r.BirthDate),
	}
	// The first address is kept as an opaque blob; interpreting its internal
	// structure is a presentation-layer concern.
	if len(r.Address) > 0 {
		p.Address = r.Address[0]
	}
	if len(r.Telecom) > 0 {
		p.Phone = optStr(r.Telecom[0].Value)
	}
	p.MaritalStatus = optStr(r.MaritalStatus.Text)
	return p, nil
}

func parseCondition(raw json.RawMessage) (model.ConditionRecord, bool, error) {
	var r conditionResource
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.ConditionRecord{}, false, fmt.Errorf("condition entry: %w", err)
	}
	pid := normalize.ReduceReference(r.Subject.Reference)
	if pid == "" {
		return model.ConditionRecord{}, false, nil
	}

	c := r.Code.firstCoding()
	rec := model.ConditionRecord{
		PatientID:     pid,
		Condition:     defaultStr(c.Display, UnknownCondition),
		ConditionCode: optStr(c.Code),
		OnsetDate:     normalize.ParseDate(r.OnsetDateTime),
		AbatementDate: normalize.ParseDate(r.AbatementDateTime),
	}
	return rec, true, nil
}

func parseMedicationRequest(raw json.RawMessage) (model.MedicationRecord, bool, error) {
	var r medicationRequestResource
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.MedicationRecord{}, false, fmt.Errorf("medication request entry: %w", err)
	}
	pid := normalize.ReduceReference(r.Subject.Reference)
	if pid == "" {
		return model.MedicationRecord{}, false, nil
	}

	c := r.MedicationCodeableConcept.firstCoding()
	rec := model.MedicationRecord{
		PatientID:      pid,
		Medication:     defaultStr(c.Display, UnknownMedication),
		MedicationCode: optStr(c.Code),
		StartDate:      normalize.ParseDate(r.AuthoredOn),
		EndDate:        nil, // nothing in the source populates an end date
		Status:         optStr(r.Status),
	}
	if len(r.DosageInstruction) > 0 {
		rec.Dosage = optStr(r.DosageInstruction[0].Text)
	}
	return rec, true, nil
}

func parseEncounter(raw json.RawMessage) (model.EncounterRecord, bool, error) {
	var r encounterResource
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.EncounterRecord{}, false, fmt.Errorf("encounter entry: %w", err)
	}
	pid := normalize.ReduceReference(r.Subject.Reference)
	if pid == "" {
		return model.EncounterRecord{}, false, nil
	}

	encType := UnknownEncounter
	if len(r.Type) > 0 {
		encType = defaultStr(r.Type[0].firstCoding().Display, UnknownEncounter)
	}
	rec := model.EncounterRecord{
		PatientID:     pid,
		EncounterType: encType,
		StartDate:     normalize.ParseDate(r.Period.Start),
		EndDate:       normalize.ParseDate(r.Period.End),
	}
	return rec, true, nil
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
