// mkbundle generates synthetic patient bundle JSON files for local testing.
// Usage: go run ./cmd/mkbundle --out testdata/bundles --count 5
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var givenNames = []string{"Jane", "John", "Amy", "Rory", "Clara", "Martha", "Donna", "Wilfred"}
var familyNames = []string{"Doe", "Roe", "Pond", "Williams", "Oswald", "Jones", "Noble", "Mott"}

var conditions = []struct{ code, display string }{
	{"44054006", "Diabetes mellitus type 2"},
	{"195967001", "Asthma"},
	{"38341003", "Essential hypertension"},
	{"36971009", "Acute sinusitis"},
}

var medications = []struct{ code, display, dosage string }{
	{"860975", "Metformin 500 MG Oral Tablet", "1 tablet twice daily"},
	{"745752", "Albuterol 0.09 MG/ACTUAT inhaler", "2 puffs as needed"},
	{"197361", "Amlodipine 5 MG Oral Tablet", "1 tablet daily"},
}

var encounterTypes = []string{"Encounter for check up", "Emergency room admission", "Follow-up visit"}

func main() {
	out := flag.String("out", "testdata/bundles", "output directory")
	count := flag.Int("count", 5, "number of bundles to generate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *count; i++ {
		id := uuid.NewString()
		doc := makeBundle(rng, id)
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal bundle: %v\n", err)
			os.Exit(1)
		}
		path := filepath.Join(*out, id+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write bundle: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	}
}

func makeBundle(rng *rand.Rand, patientID string) map[string]any {
	given := givenNames[rng.Intn(len(givenNames))]
	family := familyNames[rng.Intn(len(familyNames))]
	birth := time.Date(1940+rng.Intn(70), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)

	entries := []map[string]any{
		{
			"resource": map[string]any{
				"resourceType": "Patient",
				"id":           patientID,
				"name":         []map[string]any{{"given": []string{given}, "family": family}},
				"gender":       []string{"male", "female"}[rng.Intn(2)],
				"birthDate":    birth.Format("2006-01-02"),
				"telecom": []map[string]any{
					{"system": "phone", "value": fmt.Sprintf("555-01%02d", rng.Intn(100))},
				},
			},
		},
	}

	ref := map[string]any{"reference": "urn:uuid:" + patientID}

	for i := 0; i < 1+rng.Intn(3); i++ {
		c := conditions[rng.Intn(len(conditions))]
		onset := birth.AddDate(20+rng.Intn(40), 0, 0)
		entries = append(entries, map[string]any{
			"resource": map[string]any{
				"resourceType":  "Condition",
				"subject":       ref,
				"code":          codeable(c.code, c.display),
				"onsetDateTime": onset.Format(time.RFC3339),
			},
		})
	}

	for i := 0; i < 1+rng.Intn(2); i++ {
		m := medications[rng.Intn(len(medications))]
		entries = append(entries, map[string]any{
			"resource": map[string]any{
				"resourceType":              "MedicationRequest",
				"subject":                   ref,
				"status":                    "active",
				"medicationCodeableConcept": codeable(m.code, m.display),
				"authoredOn":                birth.AddDate(50, 0, 0).Format(time.RFC3339),
				"dosageInstruction":         []map[string]any{{"text": m.dosage}},
			},
		})
	}

	for i := 0; i < rng.Intn(3); i++ {
		start := birth.AddDate(30+rng.Intn(30), 0, 0)
		entries = append(entries, map[string]any{
			"resource": map[string]any{
				"resourceType": "Encounter",
				"subject":      ref,
				"type":         []map[string]any{codeable("185349003", encounterTypes[rng.Intn(len(encounterTypes))])},
				"period": map[string]any{
					"start": start.Format(time.RFC3339),
					"end":   start.Add(time.Hour).Format(time.RFC3339),
				},
			},
		})
	}

	return map[string]any{
		"resourceType": "Bundle",
		"type":         "transaction",
		"entry":        entries,
	}
}

func codeable(code, display string) map[string]any {
	return map[string]any{
		"coding": []map[string]any{{"system": "http://snomed.info/sct", "code": code, "display": display}},
		"text":   display,
	}
}
