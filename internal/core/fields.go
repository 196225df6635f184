package core

import "strconv"

// searchFields is the closed per-kind allow-list of fields that search
// parameters and subscription criteria may reference. Each accessor reads
// the canonical field, never the serialized wire form.
var searchFields = map[Kind]map[string]func(Resource) string{
	KindPatient: {
		"active": func(r Resource) string { return strconv.FormatBool(r.(*Patient).Active) },
		"family": func(r Resource) string { return r.(*Patient).Family },
		"gender": func(r Resource) string { return string(r.(*Patient).Gender) },
	},
	KindAppointment: {
		"status":  func(r Resource) string { return string(r.(*Appointment).Status) },
		"patient": func(r Resource) string { return strconv.FormatInt(r.(*Appointment).PatientID, 10) },
	},
	KindMedicationOrder: {
		"status":  func(r Resource) string { return string(r.(*MedicationOrder).Status) },
		"code":    func(r Resource) string { return r.(*MedicationOrder).Medication.Code },
		"patient": func(r Resource) string { return strconv.FormatInt(r.(*MedicationOrder).PatientID, 10) },
	},
	KindObservation: {
		"status":  func(r Resource) string { return string(r.(*Observation).Status) },
		"code":    func(r Resource) string { return r.(*Observation).Code.Code },
		"patient": func(r Resource) string { return strconv.FormatInt(r.(*Observation).PatientID, 10) },
	},
	KindCondition: {
		"clinical-status": func(r Resource) string { return string(r.(*Condition).ClinicalStatus) },
		"code":            func(r Resource) string { return r.(*Condition).Code.Code },
		"patient":         func(r Resource) string { return strconv.FormatInt(r.(*Condition).PatientID, 10) },
	},
	KindProcedure: {
		"status":  func(r Resource) string { return string(r.(*Procedure).Status) },
		"code":    func(r Resource) string { return r.(*Procedure).Code.Code },
		"patient": func(r Resource) string { return strconv.FormatInt(r.(*Procedure).PatientID, 10) },
	},
}

// SearchableField reports whether field is allow-listed for the given kind.
func SearchableField(kind Kind, field string) bool {
	_, ok := searchFields[kind][field]
	return ok
}

// FieldValue returns the canonical string value of an allow-listed field.
// The second return is false when the field is not allow-listed or the
// resource is of a different kind.
func FieldValue(r Resource, field string) (string, bool) {
	accessor, ok := searchFields[r.Kind()][field]
	if !ok {
		return "", false
	}
	return accessor(r), true
}
