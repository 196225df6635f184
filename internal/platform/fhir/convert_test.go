package fhir

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ngsanogo/keneyapp/internal/core"
)

func mustRoundTrip(t *testing.T, r core.Resource) core.Resource {
	t.Helper()
	payload, err := json.Marshal(ToWire(r))
	if err != nil {
		t.Fatalf("marshal wire form: %v", err)
	}
	back, err := FromWire(payload, r.ResourceMeta().TenantID)
	if err != nil {
		t.Fatalf("FromWire() error: %v\npayload: %s", err, payload)
	}
	return back
}

func testMeta() core.Meta {
	return core.Meta{
		ID:           42,
		TenantID:     "t1",
		Version:      3,
		LastModified: time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestRoundTrip_Patient(t *testing.T) {
	birth := time.Date(1984, 2, 29, 0, 0, 0, 0, time.UTC)
	p := &core.Patient{
		Meta:      testMeta(),
		Active:    true,
		Family:    "Doe",
		Given:     []string{"Jane", "Q"},
		Gender:    core.GenderFemale,
		BirthDate: &birth,
	}

	got := mustRoundTrip(t, p).(*core.Patient)
	if got.Meta.ID != 42 || got.Meta.Version != 3 {
		t.Errorf("identity lost: got id=%d version=%d", got.Meta.ID, got.Meta.Version)
	}
	if got.Family != "Doe" || len(got.Given) != 2 || got.Given[0] != "Jane" {
		t.Errorf("name lost: %+v", got)
	}
	if !got.Active || got.Gender != core.GenderFemale {
		t.Errorf("active/gender lost: %+v", got)
	}
	if got.BirthDate == nil || !got.BirthDate.Equal(birth) {
		t.Errorf("birthDate lost: %v", got.BirthDate)
	}
}

func TestRoundTrip_Appointment(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	a := &core.Appointment{
		Meta:        testMeta(),
		Status:      core.AppointmentBooked,
		Description: "Annual physical",
		PatientID:   7,
		Start:       &start,
		End:         &end,
	}

	got := mustRoundTrip(t, a).(*core.Appointment)
	if got.Status != core.AppointmentBooked || got.PatientID != 7 {
		t.Errorf("status/patient lost: %+v", got)
	}
	if got.Description != "Annual physical" {
		t.Errorf("description lost: %q", got.Description)
	}
	if got.Start == nil || !got.Start.Equal(start) || got.End == nil || !got.End.Equal(end) {
		t.Errorf("times lost: start=%v end=%v", got.Start, got.End)
	}
}

func TestRoundTrip_MedicationOrder(t *testing.T) {
	authored := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	m := &core.MedicationOrder{
		Meta:   testMeta(),
		Status: core.MedicationOrderActive,
		Medication: core.Concept{
			System:  "http://www.nlm.nih.gov/research/umls/rxnorm",
			Code:    "197361",
			Display: "Amlodipine 5 MG Oral Tablet",
		},
		PatientID:  7,
		AuthoredOn: &authored,
		DosageText: "one tablet daily",
	}

	wire := ToWire(m)
	if wire.WireType() != "MedicationRequest" {
		t.Fatalf("wire type = %q, want MedicationRequest", wire.WireType())
	}
	if wire.(*WireMedicationRequest).Intent != "order" {
		t.Error("intent must always be order")
	}

	got := mustRoundTrip(t, m).(*core.MedicationOrder)
	if got.Status != core.MedicationOrderActive || got.Medication.Code != "197361" {
		t.Errorf("status/medication lost: %+v", got)
	}
	if got.DosageText != "one tablet daily" {
		t.Errorf("dosage lost: %q", got.DosageText)
	}
	if got.PatientID != 7 {
		t.Errorf("patient lost: %d", got.PatientID)
	}
}

func TestRoundTrip_Observation(t *testing.T) {
	effective := time.Date(2026, 4, 2, 10, 15, 0, 0, time.UTC)
	o := &core.Observation{
		Meta:   testMeta(),
		Status: core.ObservationFinal,
		Code: core.Concept{
			System:  "http://loinc.org",
			Code:    "8867-4",
			Display: "Heart rate",
		},
		PatientID:   7,
		EffectiveAt: &effective,
		Value: &core.Quantity{
			Value:  72,
			Unit:   "beats/minute",
			System: "http://unitsofmeasure.org",
			Code:   "/min",
		},
	}

	got := mustRoundTrip(t, o).(*core.Observation)
	if got.Status != core.ObservationFinal || got.Code.Code != "8867-4" {
		t.Errorf("status/code lost: %+v", got)
	}
	if got.Value == nil || got.Value.Value != 72 || got.Value.Code != "/min" {
		t.Errorf("quantity lost: %+v", got.Value)
	}
}

func TestRoundTrip_Condition(t *testing.T) {
	recorded := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	c := &core.Condition{
		Meta:           testMeta(),
		ClinicalStatus: core.ConditionActive,
		Code: core.Concept{
			System:  "http://snomed.info/sct",
			Code:    "38341003",
			Display: "Hypertension",
		},
		PatientID:  7,
		RecordedAt: &recorded,
	}

	wire := ToWire(c).(*WireCondition)
	if wire.ClinicalStatus.Coding[0].System != conditionClinicalSystem {
		t.Errorf("clinicalStatus system = %q", wire.ClinicalStatus.Coding[0].System)
	}

	got := mustRoundTrip(t, c).(*core.Condition)
	if got.ClinicalStatus != core.ConditionActive || got.Code.Code != "38341003" {
		t.Errorf("status/code lost: %+v", got)
	}
}

func TestRoundTrip_Procedure(t *testing.T) {
	performed := time.Date(2026, 1, 8, 14, 0, 0, 0, time.UTC)
	p := &core.Procedure{
		Meta:   testMeta(),
		Status: core.ProcedureCompleted,
		Code: core.Concept{
			System:  "http://snomed.info/sct",
			Code:    "80146002",
			Display: "Appendectomy",
		},
		PatientID:   7,
		PerformedAt: &performed,
	}

	got := mustRoundTrip(t, p).(*core.Procedure)
	if got.Status != core.ProcedureCompleted || got.Code.Code != "80146002" {
		t.Errorf("status/code lost: %+v", got)
	}
	if got.PerformedAt == nil || !got.PerformedAt.Equal(performed) {
		t.Errorf("performed time lost: %v", got.PerformedAt)
	}
}

func TestToWire_CarriesIdentifierAndMeta(t *testing.T) {
	p := &core.Patient{Meta: testMeta(), Family: "Doe", Gender: core.GenderUnknown}
	w := ToWire(p).(*WirePatient)

	if w.ID != "42" {
		t.Errorf("id = %q, want 42", w.ID)
	}
	if len(w.Identifier) != 1 || w.Identifier[0].System != IdentifierSystem || w.Identifier[0].Value != "42" {
		t.Errorf("identifier = %+v", w.Identifier)
	}
	if w.Meta == nil || w.Meta.VersionID != "3" {
		t.Errorf("meta = %+v", w.Meta)
	}
}

func TestToWire_PanicsOnUnknownEnum(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range status")
		}
	}()
	ToWire(&core.Observation{
		Meta:      testMeta(),
		Status:    core.ObservationStatus("bogus"),
		Code:      core.Concept{Code: "x"},
		PatientID: 1,
	})
}

func TestFromWire_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantPath string
	}{
		{"malformed JSON", `{"resourceType":`, ""},
		{"unsupported type", `{"resourceType":"Device"}`, "resourceType"},
		{"patient missing family", `{"resourceType":"Patient","name":[{"given":["J"]}]}`, "name[0].family"},
		{"patient bad gender", `{"resourceType":"Patient","name":[{"family":"D"}],"gender":"robot"}`, "gender"},
		{"patient bad birth date", `{"resourceType":"Patient","name":[{"family":"D"}],"birthDate":"02/29/1984"}`, "birthDate"},
		{"patient bad id", `{"resourceType":"Patient","id":"abc","name":[{"family":"D"}]}`, "id"},
		{"appointment unknown status", `{"resourceType":"Appointment","status":"waitlisted","participant":[{"actor":{"reference":"Patient/1"}}]}`, "status"},
		{"appointment missing participant", `{"resourceType":"Appointment","status":"booked"}`, "participant"},
		{"appointment non-patient actor", `{"resourceType":"Appointment","status":"booked","participant":[{"actor":{"reference":"Practitioner/1"}}]}`, "participant[0].actor.reference"},
		{"medication wrong intent", `{"resourceType":"MedicationRequest","status":"active","intent":"plan","medicationCodeableConcept":{"coding":[{"code":"1"}]},"subject":{"reference":"Patient/1"}}`, "intent"},
		{"medication missing concept", `{"resourceType":"MedicationRequest","status":"active","intent":"order","subject":{"reference":"Patient/1"}}`, "medicationCodeableConcept"},
		{"observation missing subject", `{"resourceType":"Observation","status":"final","code":{"coding":[{"code":"1"}]}}`, "subject"},
		{"condition unknown clinical status", `{"resourceType":"Condition","clinicalStatus":{"coding":[{"code":"remission"}]},"code":{"coding":[{"code":"1"}]},"subject":{"reference":"Patient/1"}}`, "clinicalStatus.coding[0].code"},
		{"procedure missing code coding", `{"resourceType":"Procedure","status":"completed","code":{"text":"x"},"subject":{"reference":"Patient/1"}}`, "code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromWire([]byte(tt.payload), "t1")
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", verr.Path, tt.wantPath)
			}
		})
	}
}
