package admission

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAdmitted    Status = "ADMITTED"
	StatusTransferred Status = "TRANSFERRED"
	StatusDischarged  Status = "DISCHARGED"
	StatusAbsconded   Status = "ABSCONDED"
	StatusDeceased    Status = "DECEASED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAdmitted, StatusTransferred, StatusDischarged, StatusAbsconded, StatusDeceased:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDischarged || s == StatusAbsconded || s == StatusDeceased
}

// Admission is one inpatient stay. Only Status, BedID and DischargeDate change
// after creation.
type Admission struct {
	ID                  uuid.UUID  `json:"id"`
	AdmissionNumber     string     `json:"admission_number"`
	PatientID           uuid.UUID  `json:"patient_id"`
	DoctorID            uuid.UUID  `json:"doctor_id"`
	BedID               uuid.UUID  `json:"bed_id"`
	AdmissionDate       time.Time  `json:"admission_date"`
	DischargeDate       *time.Time `json:"discharge_date,omitempty"`
	Reason              string     `json:"reason"`
	Diagnosis           string     `json:"diagnosis,omitempty"`
	Allergies           string     `json:"allergies,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	IsEmergency         bool       `json:"is_emergency"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// View is an admission joined with where its bed sits.
type View struct {
	*Admission
	BedNumber           string `json:"bed_number,omitempty"`
	RoomNumber          string `json:"room_number,omitempty"`
	WardName            string `json:"ward_name,omitempty"`
	HasDischargeSummary *bool  `json:"has_discharge_summary,omitempty"`
}

type DischargeSummary struct {
	ID                     uuid.UUID `json:"id"`
	AdmissionID            uuid.UUID `json:"admission_id"`
	DoctorID               uuid.UUID `json:"doctor_id"`
	DischargeDate          time.Time `json:"discharge_date"`
	FinalDiagnosis         string    `json:"final_diagnosis"`
	TreatmentSummary       string    `json:"treatment_summary,omitempty"`
	FollowUpInstructions   string    `json:"follow_up_instructions,omitempty"`
	MedicationsAtDischarge string    `json:"medications_at_discharge,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

type BedTransfer struct {
	ID            uuid.UUID `json:"id"`
	AdmissionID   uuid.UUID `json:"admission_id"`
	FromBedID     uuid.UUID `json:"from_bed_id"`
	ToBedID       uuid.UUID `json:"to_bed_id"`
	Reason        string    `json:"reason"`
	TransferredBy string    `json:"transferred_by,omitempty"`
	TransferredAt time.Time `json:"transferred_at"`
}

// StatusChange is one row of an admission's status history. FromStatus is
// empty for the initial ADMITTED entry.
type StatusChange struct {
	ID          uuid.UUID `json:"id"`
	AdmissionID uuid.UUID `json:"admission_id"`
	FromStatus  Status    `json:"from_status,omitempty"`
	ToStatus    Status    `json:"to_status"`
	ChangedBy   string    `json:"changed_by,omitempty"`
	Note        string    `json:"note,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

type Filter struct {
	Status    Status
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

type AdmitRequest struct {
	PatientID           uuid.UUID
	DoctorID            uuid.UUID
	BedID               uuid.UUID
	Reason              string
	Diagnosis           string
	Allergies           string
	SpecialInstructions string
	IsEmergency         bool
	AdmittedBy          string
}

type TransferRequest struct {
	NewBedID      uuid.UUID
	Reason        string
	TransferredBy string
}
