// Package core holds the canonical clinical data model. Resources here are
// owned by the collaborating persistence layer; this subsystem only reads
// them and translates them to and from their FHIR wire form.
package core

import (
	"fmt"
	"time"
)

// Kind identifies a canonical resource type.
type Kind string

const (
	KindPatient         Kind = "Patient"
	KindAppointment     Kind = "Appointment"
	KindMedicationOrder Kind = "MedicationOrder"
	KindObservation     Kind = "Observation"
	KindCondition       Kind = "Condition"
	KindProcedure       Kind = "Procedure"
)

// Kinds lists every supported canonical kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindPatient, KindAppointment, KindMedicationOrder,
		KindObservation, KindCondition, KindProcedure,
	}
}

// WireType returns the FHIR resource type a canonical kind serializes as.
func (k Kind) WireType() string {
	if k == KindMedicationOrder {
		return "MedicationRequest"
	}
	return string(k)
}

// KindFromWireType maps a FHIR resource type back to its canonical kind.
func KindFromWireType(wireType string) (Kind, bool) {
	if wireType == "MedicationRequest" {
		return KindMedicationOrder, true
	}
	k := Kind(wireType)
	for _, known := range Kinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Meta carries the identity and versioning fields shared by every
// canonical resource. IDs are tenant-scoped and assigned by the
// persistence layer; Version increases monotonically on every write.
type Meta struct {
	ID           int64
	TenantID     string
	Version      int
	LastModified time.Time
}

// WeakETag renders the weak version tag for the resource,
// e.g. W/"Patient/42-3".
func (m *Meta) WeakETag(k Kind) string {
	return fmt.Sprintf("W/%q", fmt.Sprintf("%s/%d-%d", k.WireType(), m.ID, m.Version))
}

// Reference renders the relative reference for the resource, e.g. "Patient/42".
func (m *Meta) Reference(k Kind) string {
	return fmt.Sprintf("%s/%d", k.WireType(), m.ID)
}

// Concept is a coded value. Coded fields always carry the full
// {system, code, display} triple, never a bare string.
type Concept struct {
	System  string
	Code    string
	Display string
}

// Quantity is a measured value with its unit coding.
type Quantity struct {
	Value float64
	Unit  string
	System string
	Code  string
}

// MutationKind tags the kind of committed write that produced an event.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Resource is the closed set of canonical clinical resources. The sealed
// marker keeps the union exhaustive: adding a kind means adding a struct
// here and a converter arm, both checked at compile time.
type Resource interface {
	Kind() Kind
	ResourceMeta() *Meta
	sealed()
}

// Gender is the canonical administrative gender enumeration.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// Patient is a person receiving care.
type Patient struct {
	Meta      Meta
	Active    bool
	Family    string
	Given     []string
	Gender    Gender
	BirthDate *time.Time
}

func (p *Patient) Kind() Kind          { return KindPatient }
func (p *Patient) ResourceMeta() *Meta { return &p.Meta }
func (p *Patient) sealed()             {}

// AppointmentStatus is the canonical appointment lifecycle enumeration.
type AppointmentStatus string

const (
	AppointmentProposed  AppointmentStatus = "proposed"
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentArrived   AppointmentStatus = "arrived"
	AppointmentFulfilled AppointmentStatus = "fulfilled"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "noshow"
)

// Appointment is a booked encounter slot for a patient.
type Appointment struct {
	Meta        Meta
	Status      AppointmentStatus
	Description string
	PatientID   int64
	Start       *time.Time
	End         *time.Time
}

func (a *Appointment) Kind() Kind          { return KindAppointment }
func (a *Appointment) ResourceMeta() *Meta { return &a.Meta }
func (a *Appointment) sealed()             {}

// MedicationOrderStatus is the canonical order lifecycle enumeration.
type MedicationOrderStatus string

const (
	MedicationOrderActive    MedicationOrderStatus = "active"
	MedicationOrderOnHold    MedicationOrderStatus = "on-hold"
	MedicationOrderCompleted MedicationOrderStatus = "completed"
	MedicationOrderStopped   MedicationOrderStatus = "stopped"
	MedicationOrderDraft     MedicationOrderStatus = "draft"
)

// MedicationOrder is a prescriber's order for a medication.
type MedicationOrder struct {
	Meta       Meta
	Status     MedicationOrderStatus
	Medication Concept
	PatientID  int64
	AuthoredOn *time.Time
	DosageText string
}

func (m *MedicationOrder) Kind() Kind          { return KindMedicationOrder }
func (m *MedicationOrder) ResourceMeta() *Meta { return &m.Meta }
func (m *MedicationOrder) sealed()             {}

// ObservationStatus is the canonical observation lifecycle enumeration.
type ObservationStatus string

const (
	ObservationRegistered  ObservationStatus = "registered"
	ObservationPreliminary ObservationStatus = "preliminary"
	ObservationFinal       ObservationStatus = "final"
	ObservationAmended     ObservationStatus = "amended"
)

// Observation is a measured or asserted clinical value.
type Observation struct {
	Meta        Meta
	Status      ObservationStatus
	Code        Concept
	PatientID   int64
	EffectiveAt *time.Time
	Value       *Quantity
}

func (o *Observation) Kind() Kind          { return KindObservation }
func (o *Observation) ResourceMeta() *Meta { return &o.Meta }
func (o *Observation) sealed()             {}

// ConditionStatus is the canonical condition clinical-status enumeration.
type ConditionStatus string

const (
	ConditionActive   ConditionStatus = "active"
	ConditionInactive ConditionStatus = "inactive"
	ConditionResolved ConditionStatus = "resolved"
)

// Condition is a diagnosed or reported clinical problem.
type Condition struct {
	Meta           Meta
	ClinicalStatus ConditionStatus
	Code           Concept
	PatientID      int64
	RecordedAt     *time.Time
}

func (c *Condition) Kind() Kind          { return KindCondition }
func (c *Condition) ResourceMeta() *Meta { return &c.Meta }
func (c *Condition) sealed()             {}

// ProcedureStatus is the canonical procedure lifecycle enumeration.
type ProcedureStatus string

const (
	ProcedurePreparation ProcedureStatus = "preparation"
	ProcedureInProgress  ProcedureStatus = "in-progress"
	ProcedureCompleted   ProcedureStatus = "completed"
	ProcedureNotDone     ProcedureStatus = "not-done"
)

// Procedure is a clinical action performed on a patient.
type Procedure struct {
	Meta        Meta
	Status      ProcedureStatus
	Code        Concept
	PatientID   int64
	PerformedAt *time.Time
}

func (p *Procedure) Kind() Kind          { return KindProcedure }
func (p *Procedure) ResourceMeta() *Meta { return &p.Meta }
func (p *Procedure) sealed()             {}
