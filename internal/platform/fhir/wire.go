package fhir

import "time"

// WireResource is the closed set of typed FHIR R4 resource representations
// produced by the converter. The declared resource type always matches the
// converter arm that built it, and the id always equals the canonical
// identity rendered as a decimal string.
type WireResource interface {
	WireType() string
	WireID() string
}

// WirePatient is the FHIR Patient resource.
type WirePatient struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id,omitempty"`
	Meta         *Meta        `json:"meta,omitempty"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Active       *bool        `json:"active,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
	Gender       string       `json:"gender,omitempty"`
	BirthDate    string       `json:"birthDate,omitempty"`
}

func (w *WirePatient) WireType() string { return w.ResourceType }
func (w *WirePatient) WireID() string   { return w.ID }

// WireAppointment is the FHIR Appointment resource.
type WireAppointment struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Identifier   []Identifier  `json:"identifier,omitempty"`
	Status       string        `json:"status"`
	Description  string        `json:"description,omitempty"`
	Start        *time.Time    `json:"start,omitempty"`
	End          *time.Time    `json:"end,omitempty"`
	Participant  []Participant `json:"participant,omitempty"`
}

func (w *WireAppointment) WireType() string { return w.ResourceType }
func (w *WireAppointment) WireID() string   { return w.ID }

// WireMedicationRequest is the FHIR MedicationRequest resource. The
// canonical model calls this a MedicationOrder; the wire form follows R4.
type WireMedicationRequest struct {
	ResourceType               string           `json:"resourceType"`
	ID                         string           `json:"id,omitempty"`
	Meta                       *Meta            `json:"meta,omitempty"`
	Identifier                 []Identifier     `json:"identifier,omitempty"`
	Status                     string           `json:"status"`
	Intent                     string           `json:"intent"`
	MedicationCodeableConcept  *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                    *Reference       `json:"subject,omitempty"`
	AuthoredOn                 *time.Time       `json:"authoredOn,omitempty"`
	DosageInstruction          []Dosage         `json:"dosageInstruction,omitempty"`
}

func (w *WireMedicationRequest) WireType() string { return w.ResourceType }
func (w *WireMedicationRequest) WireID() string   { return w.ID }

// WireObservation is the FHIR Observation resource.
type WireObservation struct {
	ResourceType      string           `json:"resourceType"`
	ID                string           `json:"id,omitempty"`
	Meta              *Meta            `json:"meta,omitempty"`
	Identifier        []Identifier     `json:"identifier,omitempty"`
	Status            string           `json:"status"`
	Code              *CodeableConcept `json:"code,omitempty"`
	Subject           *Reference       `json:"subject,omitempty"`
	EffectiveDateTime *time.Time       `json:"effectiveDateTime,omitempty"`
	ValueQuantity     *Quantity        `json:"valueQuantity,omitempty"`
}

func (w *WireObservation) WireType() string { return w.ResourceType }
func (w *WireObservation) WireID() string   { return w.ID }

// WireCondition is the FHIR Condition resource.
type WireCondition struct {
	ResourceType   string           `json:"resourceType"`
	ID             string           `json:"id,omitempty"`
	Meta           *Meta            `json:"meta,omitempty"`
	Identifier     []Identifier     `json:"identifier,omitempty"`
	ClinicalStatus *CodeableConcept `json:"clinicalStatus,omitempty"`
	Code           *CodeableConcept `json:"code,omitempty"`
	Subject        *Reference       `json:"subject,omitempty"`
	RecordedDate   *time.Time       `json:"recordedDate,omitempty"`
}

func (w *WireCondition) WireType() string { return w.ResourceType }
func (w *WireCondition) WireID() string   { return w.ID }

// WireProcedure is the FHIR Procedure resource.
type WireProcedure struct {
	ResourceType          string           `json:"resourceType"`
	ID                    string           `json:"id,omitempty"`
	Meta                  *Meta            `json:"meta,omitempty"`
	Identifier            []Identifier     `json:"identifier,omitempty"`
	Status                string           `json:"status"`
	Code                  *CodeableConcept `json:"code,omitempty"`
	Subject               *Reference       `json:"subject,omitempty"`
	PerformedDateTime     *time.Time       `json:"performedDateTime,omitempty"`
}

func (w *WireProcedure) WireType() string { return w.ResourceType }
func (w *WireProcedure) WireID() string   { return w.ID }
