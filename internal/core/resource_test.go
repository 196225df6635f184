package core

import "testing"

func TestKindWireType(t *testing.T) {
	if got := KindMedicationOrder.WireType(); got != "MedicationRequest" {
		t.Errorf("MedicationOrder wire type = %q, want MedicationRequest", got)
	}
	if got := KindPatient.WireType(); got != "Patient" {
		t.Errorf("Patient wire type = %q, want Patient", got)
	}
}

func TestKindFromWireType(t *testing.T) {
	tests := []struct {
		wireType string
		want     Kind
		ok       bool
	}{
		{"Patient", KindPatient, true},
		{"MedicationRequest", KindMedicationOrder, true},
		{"Appointment", KindAppointment, true},
		{"Observation", KindObservation, true},
		{"Condition", KindCondition, true},
		{"Procedure", KindProcedure, true},
		{"MedicationOrder", "", false},
		{"Device", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := KindFromWireType(tt.wireType)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindFromWireType(%q) = (%q, %v), want (%q, %v)",
				tt.wireType, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMetaWeakETag(t *testing.T) {
	m := &Meta{ID: 42, Version: 3}
	if got := m.WeakETag(KindPatient); got != `W/"Patient/42-3"` {
		t.Errorf("WeakETag = %s, want W/\"Patient/42-3\"", got)
	}
	if got := m.WeakETag(KindMedicationOrder); got != `W/"MedicationRequest/42-3"` {
		t.Errorf("WeakETag = %s, want W/\"MedicationRequest/42-3\"", got)
	}
}

func TestMetaReference(t *testing.T) {
	m := &Meta{ID: 7}
	if got := m.Reference(KindCondition); got != "Condition/7" {
		t.Errorf("Reference = %q, want Condition/7", got)
	}
}

func TestFieldValue(t *testing.T) {
	p := &Patient{Meta: Meta{ID: 1}, Active: true, Family: "Doe", Gender: GenderFemale}

	if v, ok := FieldValue(p, "active"); !ok || v != "true" {
		t.Errorf("active = (%q, %v), want (true, true)", v, ok)
	}
	if v, ok := FieldValue(p, "family"); !ok || v != "Doe" {
		t.Errorf("family = (%q, %v)", v, ok)
	}
	if _, ok := FieldValue(p, "birthdate"); ok {
		t.Error("birthdate should not be allow-listed for Patient")
	}

	obs := &Observation{Status: ObservationFinal, Code: Concept{Code: "8867-4"}, PatientID: 12}
	if v, ok := FieldValue(obs, "patient"); !ok || v != "12" {
		t.Errorf("patient = (%q, %v), want (12, true)", v, ok)
	}
	if v, ok := FieldValue(obs, "code"); !ok || v != "8867-4" {
		t.Errorf("code = (%q, %v)", v, ok)
	}
}
