package fhir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// IdentifierSystem is the fixed system URI carried on every converted
// resource's identifier entry so origin-system provenance survives
// round-tripping.
const IdentifierSystem = "urn:keneyapp:resource-id"

const birthDateLayout = "2006-01-02"

// Status and code enumerations map through explicit, total lookup tables.
// A canonical value outside its table is a programming error: the converter
// panics rather than silently defaulting.

var genderToWire = map[core.Gender]string{
	core.GenderMale:    "male",
	core.GenderFemale:  "female",
	core.GenderOther:   "other",
	core.GenderUnknown: "unknown",
}

var appointmentStatusToWire = map[core.AppointmentStatus]string{
	core.AppointmentProposed:  "proposed",
	core.AppointmentBooked:    "booked",
	core.AppointmentArrived:   "arrived",
	core.AppointmentFulfilled: "fulfilled",
	core.AppointmentCancelled: "cancelled",
	core.AppointmentNoShow:    "noshow",
}

var medicationOrderStatusToWire = map[core.MedicationOrderStatus]string{
	core.MedicationOrderActive:    "active",
	core.MedicationOrderOnHold:    "on-hold",
	core.MedicationOrderCompleted: "completed",
	core.MedicationOrderStopped:   "stopped",
	core.MedicationOrderDraft:     "draft",
}

var observationStatusToWire = map[core.ObservationStatus]string{
	core.ObservationRegistered:  "registered",
	core.ObservationPreliminary: "preliminary",
	core.ObservationFinal:       "final",
	core.ObservationAmended:     "amended",
}

// conditionClinicalSystem is the R4 terminology system for condition
// clinical status codes.
const conditionClinicalSystem = "http://terminology.hl7.org/CodeSystem/condition-clinical"

var conditionStatusToWire = map[core.ConditionStatus]Coding{
	core.ConditionActive:   {System: conditionClinicalSystem, Code: "active", Display: "Active"},
	core.ConditionInactive: {System: conditionClinicalSystem, Code: "inactive", Display: "Inactive"},
	core.ConditionResolved: {System: conditionClinicalSystem, Code: "resolved", Display: "Resolved"},
}

var procedureStatusToWire = map[core.ProcedureStatus]string{
	core.ProcedurePreparation: "preparation",
	core.ProcedureInProgress:  "in-progress",
	core.ProcedureCompleted:   "completed",
	core.ProcedureNotDone:     "not-done",
}

var genderFromWire = invert(genderToWire)
var appointmentStatusFromWire = invert(appointmentStatusToWire)
var medicationOrderStatusFromWire = invert(medicationOrderStatusToWire)
var observationStatusFromWire = invert(observationStatusToWire)
var procedureStatusFromWire = invert(procedureStatusToWire)

var conditionStatusFromWire = func() map[string]core.ConditionStatus {
	m := make(map[string]core.ConditionStatus, len(conditionStatusToWire))
	for k, v := range conditionStatusToWire {
		m[v.Code] = k
	}
	return m
}()

func invert[K ~string](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func lookup[K ~string](table map[K]string, v K, kind core.Kind, field string) string {
	w, ok := table[v]
	if !ok {
		panic(fmt.Sprintf("fhir: %s has no wire mapping for %s value %q", kind, field, string(v)))
	}
	return w
}

// ToWire converts a canonical resource to its typed FHIR representation.
// It is pure and total for every valid canonical resource: absent optional
// fields are omitted, never errored on.
func ToWire(r core.Resource) WireResource {
	switch r := r.(type) {
	case *core.Patient:
		return patientToWire(r)
	case *core.Appointment:
		return appointmentToWire(r)
	case *core.MedicationOrder:
		return medicationOrderToWire(r)
	case *core.Observation:
		return observationToWire(r)
	case *core.Condition:
		return conditionToWire(r)
	case *core.Procedure:
		return procedureToWire(r)
	default:
		panic(fmt.Sprintf("fhir: no converter for canonical type %T", r))
	}
}

// FromWire parses and validates a FHIR resource payload into a canonical
// resource owned by the given tenant. It either returns a fully built
// resource or a ValidationError naming the offending path, never a partial
// resource.
func FromWire(payload []byte, tenantID string) (core.Resource, error) {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, core.NewValidationError("", "malformed JSON body: %v", err)
	}
	kind, ok := core.KindFromWireType(head.ResourceType)
	if !ok {
		return nil, core.NewValidationError("resourceType", "unsupported resource type %q", head.ResourceType)
	}

	switch kind {
	case core.KindPatient:
		return patientFromWire(payload, tenantID)
	case core.KindAppointment:
		return appointmentFromWire(payload, tenantID)
	case core.KindMedicationOrder:
		return medicationOrderFromWire(payload, tenantID)
	case core.KindObservation:
		return observationFromWire(payload, tenantID)
	case core.KindCondition:
		return conditionFromWire(payload, tenantID)
	case core.KindProcedure:
		return procedureFromWire(payload, tenantID)
	default:
		panic(fmt.Sprintf("fhir: no parser for canonical kind %q", kind))
	}
}

// -- shared wire helpers --

func wireID(m *core.Meta) string {
	if m.ID == 0 {
		return ""
	}
	return strconv.FormatInt(m.ID, 10)
}

func wireMeta(m *core.Meta) *Meta {
	if m.Version == 0 && m.LastModified.IsZero() {
		return nil
	}
	out := &Meta{}
	if m.Version > 0 {
		out.VersionID = strconv.Itoa(m.Version)
	}
	if !m.LastModified.IsZero() {
		t := m.LastModified
		out.LastUpdated = &t
	}
	return out
}

func wireIdentifier(m *core.Meta) []Identifier {
	if m.ID == 0 {
		return nil
	}
	return []Identifier{{System: IdentifierSystem, Value: strconv.FormatInt(m.ID, 10)}}
}

func conceptToWire(c core.Concept) *CodeableConcept {
	if c.Code == "" {
		return nil
	}
	return &CodeableConcept{
		Coding: []Coding{{System: c.System, Code: c.Code, Display: c.Display}},
		Text:   c.Display,
	}
}

func patientReference(patientID int64) *Reference {
	if patientID == 0 {
		return nil
	}
	return &Reference{Reference: fmt.Sprintf("Patient/%d", patientID), Type: "Patient"}
}

func metaFromWire(id string, meta *Meta, tenantID string, kind core.Kind) (core.Meta, error) {
	out := core.Meta{TenantID: tenantID}
	if id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return out, core.NewValidationError("id", "must be a positive integer, got %q", id)
		}
		out.ID = n
	}
	if meta != nil {
		if meta.VersionID != "" {
			v, err := strconv.Atoi(meta.VersionID)
			if err != nil || v < 0 {
				return out, core.NewValidationError("meta.versionId", "must be a non-negative integer, got %q", meta.VersionID)
			}
			out.Version = v
		}
		if meta.LastUpdated != nil {
			out.LastModified = *meta.LastUpdated
		}
	}
	_ = kind
	return out, nil
}

func conceptFromWire(path string, cc *CodeableConcept, required bool) (core.Concept, error) {
	if cc == nil || len(cc.Coding) == 0 {
		if required {
			return core.Concept{}, core.NewValidationError(path, "is required and must carry at least one coding")
		}
		return core.Concept{}, nil
	}
	coding := cc.Coding[0]
	if coding.Code == "" {
		return core.Concept{}, core.NewValidationError(path+".coding[0].code", "is required")
	}
	display := coding.Display
	if display == "" {
		display = cc.Text
	}
	return core.Concept{System: coding.System, Code: coding.Code, Display: display}, nil
}

func patientIDFromReference(path string, ref *Reference) (int64, error) {
	if ref == nil || ref.Reference == "" {
		return 0, core.NewValidationError(path, "is required")
	}
	rest, ok := strings.CutPrefix(ref.Reference, "Patient/")
	if !ok {
		return 0, core.NewValidationError(path+".reference", "must reference a Patient, got %q", ref.Reference)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(path+".reference", "must carry a positive integer id, got %q", ref.Reference)
	}
	return id, nil
}

func decodeInto(payload []byte, kind core.Kind, dst interface{}) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return core.NewValidationError("", "malformed %s payload: %v", kind.WireType(), err)
	}
	return nil
}

// -- Patient --

func patientToWire(p *core.Patient) *WirePatient {
	active := p.Active
	w := &WirePatient{
		ResourceType: core.KindPatient.WireType(),
		ID:           wireID(&p.Meta),
		Meta:         wireMeta(&p.Meta),
		Identifier:   wireIdentifier(&p.Meta),
		Active:       &active,
		Gender:       lookup(genderToWire, p.Gender, core.KindPatient, "gender"),
	}
	if p.Family != "" || len(p.Given) > 0 {
		w.Name = []HumanName{{Family: p.Family, Given: p.Given}}
	}
	if p.BirthDate != nil {
		w.BirthDate = p.BirthDate.Format(birthDateLayout)
	}
	return w
}

func patientFromWire(payload []byte, tenantID string) (core.Resource, error) {
	var w WirePatient
	if err := decodeInto(payload, core.KindPatient, &w); err != nil {
		return nil, err
	}
	meta, err := metaFromWire(w.ID, w.Meta, tenantID, core.KindPatient)
	if err != nil {
		return nil, err
	}
	if len(w.Name) == 0 || w.Name[0].Family == "" {
		return nil, core.NewValidationError("name[0].family", "is required")
	}
	gender := core.GenderUnknown
	if w.Gender != "" {
		g, ok := genderFromWire[w.Gender]
		if !ok {
			return nil, core.NewValidationError("gender", "unknown code %q", w.Gender)
		}
		gender = g
	}
	p := &core.Patient{
		Meta:   meta,
		Family: w.Name[0].Family,
		Given:  w.Name[0].Given,
		Gender: gender,
	}
	if w.Active != nil {
		p.Active = *w.Active
	}
	if w.BirthDate != "" {
		t, err := time.Parse(birthDateLayout, w.BirthDate)
		if err != nil {
			return nil, core.NewValidationError("birthDate", "must be formatted YYYY-MM-DD, got %q", w.BirthDate)
		}
		p.BirthDate = &t
	}
	return p, nil
}

// -- Appointment --

func appointmentToWire(a *core.Appointment) *WireAppointment {
	w := &WireAppointment{
		ResourceType: core.KindAppointment.WireType(),
		ID:           wireID(&a.Meta),
		Meta:         wireMeta(&a.Meta),
		Identifier:   wireIdentifier(&a.Meta),
		Status:       lookup(appointmentStatusToWire, a.Status, core.KindAppointment, "status"),
		Description:  a.Description,
		Start:        a.Start,
		End:          a.End,
	}
	if ref := patientReference(a.PatientID); ref != nil {
		w.Participant = []Participant{{Actor: ref, Status: "accepted"}}
	}
	return w
}

func appointmentFromWire(payload []byte, tenantID string) (core.Resource, error) {
	var w WireAppointment
	if err := decodeInto(payload, core.KindAppointment, &w); err != nil {
		return nil, err
	}
	meta, err := metaFromWire(w.ID, w.Meta, tenantID, core.KindAppointment)
	if err != nil {
		return nil, err
	}
	status, ok := appointmentStatusFromWire[w.Status]
	if !ok {
		return nil, core.NewValidationError("status", "unknown code %q", w.Status)
	}
	if len(w.Participant) == 0 {
		return nil, core.NewValidationError("participant", "is required")
	}
	patientID, err := patientIDFromReference("participant[0].actor", w.Participant[0].Actor)
	if err != nil {
		return nil, err
	}
	return &core.Appointment{
		Meta:        meta,
		Status:      status,
		Description: w.Description,
		PatientID:   patientID,
		Start:       w.Start,
		End:         w.End,
	}, nil
}

// -- MedicationOrder / MedicationRequest --

func medicationOrderToWire(m *core.MedicationOrder) *WireMedicationRequest {
	w := &WireMedicationRequest{
		ResourceType:              core.KindMedicationOrder.WireType(),
		ID:                        wireID(&m.Meta),
		Meta:                      wireMeta(&m.Meta),
		Identifier:                wireIdentifier(&m.Meta),
		Status:                    lookup(medicationOrderStatusToWire, m.Status, core.KindMedicationOrder, "status"),
		Intent:                    "order",
		MedicationCodeableConcept: conceptToWire(m.Medication),
		Subject:                   patientReference(m.PatientID),
		AuthoredOn:                m.AuthoredOn,
	}
	if m.DosageText != "" {
		w.DosageInstruction = []Dosage{{Text: m.DosageText}}
	}
	return w
}

func medicationOrderFromWire(payload []byte, tenantID string) (core.Resource, error) {
	var w WireMedicationRequest
	if err := decodeInto(payload, core.KindMedicationOrder, &w); err != nil {
		return nil, err
	}
	meta, err := metaFromWire(w.ID, w.Meta, tenantID, core.KindMedicationOrder)
	if err != nil {
		return nil, err
	}
	status, ok := medicationOrderStatusFromWire[w.Status]
	if !ok {
		return nil, core.NewValidationError("status", "unknown code %q", w.Status)
	}
	if w.Intent != "order" {
		return nil, core.NewValidationError("intent", "must be \"order\", got %q", w.Intent)
	}
	medication, err := conceptFromWire("medicationCodeableConcept", w.MedicationCodeableConcept, true)
	if err != nil {
		return nil, err
	}
	patientID, err := patientIDFromReference("subject", w.Subject)
	if err != nil {
		return nil, err
	}
	order := &core.MedicationOrder{
		Meta:       meta,
		Status:     status,
		Medication: medication,
		PatientID:  patientID,
		AuthoredOn: w.AuthoredOn,
	}
	if len(w.DosageInstruction) > 0 {
		order.DosageText = w.DosageInstruction[0].Text
	}
	return order, nil
}

// -- Observation --

func observationToWire(o *core.Observation) *WireObservation {
	w := &WireObservation{
		ResourceType:      core.KindObservation.WireType(),
		ID:                wireID(&o.Meta),
		Meta:              wireMeta(&o.Meta),
		Identifier:        wireIdentifier(&o.Meta),
		Status:            lookup(observationStatusToWire, o.Status, core.KindObservation, "status"),
		Code:              conceptToWire(o.Code),
		Subject:           patientReference(o.PatientID),
		EffectiveDateTime: o.EffectiveAt,
	}
	if o.Value != nil {
		w.ValueQuantity = &Quantity{
			Value:  o.Value.Value,
			Unit:   o.Value.Unit,
			System: o.Value.System,
			Code:   o.Value.Code,
		}
	}
	return w
}

func observationFromWire(payload []byte, tenantID string) (core.Resource, error) {
	var w WireObservation
	if err := decodeInto(payload, core.KindObservation, &w); err != nil {
		return nil, err
	}
	meta, err := metaFromWire(w.ID, w.Meta, tenantID, core.KindObservation)
	if err != nil {
		return nil, err
	}
	status, ok := observationStatusFromWire[w.Status]
	if !ok {
		return nil, core.NewValidationError("status", "unknown code %q", w.Status)
	}
	code, err := conceptFromWire("code", w.Code, true)
	if err != nil {
		return nil, err
	}
	patientID, err := patientIDFromReference("subject", w.Subject)
	if err != nil {
		return nil, err
	}
	obs := &core.Observation{
		Meta:        meta,
		Status:      status,
		Code:        code,
		PatientID:   patientID,
		EffectiveAt: w.EffectiveDateTime,
	}
	if w.ValueQuantity != nil {
		obs.Value = &core.Quantity{
			Value:  w.ValueQuantity.Value,
			Unit:   w.ValueQuantity.Unit,
			System: w.ValueQuantity.System,
			Code:   w.ValueQuantity.Code,
		}
	}
	return obs, nil
}

// -- Condition --

func conditionToWire(c *core.Condition) *WireCondition {
	coding, ok := conditionStatusToWire[c.ClinicalStatus]
	if !ok {
		panic(fmt.Sprintf("fhir: Condition has no wire mapping for clinicalStatus value %q", string(c.ClinicalStatus)))
	}
	return &WireCondition{
		ResourceType:   core.KindCondition.WireType(),
		ID:             wireID(&c.Meta),
		Meta:           wireMeta(&c.Meta),
		Identifier:     wireIdentifier(&c.Meta),
		ClinicalStatus: &CodeableConcept{Coding: []Coding{coding}, Text: coding.Display},
		Code:           conceptToWire(c.Code),
		Subject:        patientReference(c.PatientID),
		RecordedDate:   c.RecordedAt,
	}
}

func conditionFromWire(payload []byte, tenantID string) (core.Resource, error) {
	var w WireCondition
	if err := decodeInto(payload, core.KindCondition, &w); err != nil {
		return nil, err
	}
	meta, err := metaFromWire(w.ID, w.Meta, tenantID, core.KindCondition)
	if err != nil {
		return nil, err
	}
	if w.ClinicalStatus == nil || len(w.ClinicalStatus.Coding) == 0 {
		return nil, core.NewValidationError("clinicalStatus", "is required and must carry at least one coding")
	}
	status, ok := conditionStatusFromWire[w.ClinicalStatus.Coding[0].Code]
	if !ok {
		return nil, core.NewValidationError("clinicalStatus.coding[0].code", "unknown code %q", w.ClinicalStatus.Coding[0].Code)
	}
	code, err := conceptFromWire("code", w.Code, true)
	if err != nil {
		return nil, err
	}
	patientID, err := patientIDFromReference("subject", w.Subject)
	if err != nil {
		return nil, err
	}
	return &core.Condition{
		Meta:           meta,
		ClinicalStatus: status,
		Code:           code,
		PatientID:      patientID,
		RecordedAt:     w.RecordedDate,
	}, nil
}

// -- Procedure --

func procedureToWire(p *core.Procedure) *WireProcedure {
	return &WireProcedure{
		ResourceType:      core.KindProcedure.WireType(),
		ID:                wireID(&p.Meta),
		Meta:              wireMeta(&p.Meta),
		Identifier:        wireIdentifier(&p.Meta),
		Status:            lookup(procedureStatusToWire, p.Status, core.KindProcedure, "status"),
		Code:              conceptToWire(p.Code),
		Subject:           patientReference(p.PatientID),
		PerformedDateTime: p.PerformedAt,
	}
}

func procedureFromWire(payload []byte, tenantID string) (core.Resource, error) {
	var w WireProcedure
	if err := decodeInto(payload, core.KindProcedure, &w); err != nil {
		return nil, err
	}
	meta, err := metaFromWire(w.ID, w.Meta, tenantID, core.KindProcedure)
	if err != nil {
		return nil, err
	}
	status, ok := procedureStatusFromWire[w.Status]
	if !ok {
		return nil, core.NewValidationError("status", "unknown code %q", w.Status)
	}
	code, err := conceptFromWire("code", w.Code, true)
	if err != nil {
		return nil, err
	}
	patientID, err := patientIDFromReference("subject", w.Subject)
	if err != nil {
		return nil, err
	}
	return &core.Procedure{
		Meta:        meta,
		Status:      status,
		Code:        code,
		PatientID:   patientID,
		PerformedAt: w.PerformedDateTime,
	}, nil
}
