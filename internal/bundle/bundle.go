// Package bundle parses patient bundle documents into normalized record
// sets. Parsing is pure: no I/O, no store access.
package bundle

import "encoding/json"

// Resource kinds recognized by the parser. Entries of any other kind are
// ignored without error, since exported bundles carry many resource types
// this system does not track.
const (
	kindPatient           = "Patient"
	kindCondition         = "Condition"
	kindMedicationRequest = "MedicationRequest"
	kindEncounter         = "Encounter"
)

// document is the top-level bundle shape: a typed wrapper around a list of
// entries, each holding one resource object.
type document struct {
	ResourceType string  `json:"resourceType"`
	Entry        []entry `json:"entry"`
}

type entry struct {
	Resource json.RawMessage `json:"resource"`
}

// header is the first-pass decode of an entry resource, used only to
// dispatch on the resource kind.
type header struct {
	ResourceType string `json:"resourceType"`
}

type humanName struct {
	Given  []string `json:"given"`
	Family string   `json:"family"`
}

type telecom struct {
	Value string `json:"value"`
}

type codeableConcept struct {
	Coding []coding `json:"coding"`
	Text   string   `json:"text"`
}

type coding struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

type reference struct {
	Reference string `json:"reference"`
}

type period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type patientResource struct {
	ID            string            `json:"id"`
	Name          []humanName       `json:"name"`
	Gender        string            `json:"gender"`
	BirthDate     string            `json:"birthDate"`
	Address       []json.RawMessage `json:"address"`
	Telecom       []telecom         `json:"telecom"`
	MaritalStatus codeableConcept   `json:"maritalStatus"`
}

type conditionResource struct {
	Subject           reference       `json:"subject"`
	Code              codeableConcept `json:"code"`
	OnsetDateTime     string          `json:"onsetDateTime"`
	AbatementDateTime string          `json:"abatementDateTime"`
}

type medicationRequestResource struct {
	Subject                   reference           `json:"subject"`
	MedicationCodeableConcept codeableConcept     `json:"medicationCodeableConcept"`
	AuthoredOn                string              `json:"authoredOn"`
	Status                    string              `json:"status"`
	DosageInstruction         []dosageInstruction `json:"dosageInstruction"`
}

type dosageInstruction struct {
	Text string `json:"text"`
}

type encounterResource struct {
	Subject reference         `json:"subject"`
	Type    []codeableConcept `json:"type"`
	Period  period            `json:"period"`
}

// firstCoding returns the first coding of a concept, or a zero coding.
func (c codeableConcept) firstCoding() coding {
	if len(c.Coding) == 0 {
		return coding{}
	}
	return c.Coding[0]
}
