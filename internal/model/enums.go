package model

type UserRole string

const (
	RolePatient   UserRole = "patient"
	RoleTherapist UserRole = "therapist"
	RoleAdmin     UserRole = "admin"
)

type SessionType string

const (
	SessionTypeIndividual SessionType = "individual"
	SessionTypeGroup      SessionType = "group"
	SessionTypeFamily     SessionType = "family"
	SessionTypeCouples    SessionType = "couples"
	SessionTypeAssessment SessionType = "assessment"
	SessionTypeFollowUp   SessionType = "follow_up"
)

func ValidSessionTypes() []string {
	return []string{
		string(SessionTypeIndividual),
		string(SessionTypeGroup),
		string(SessionTypeFamily),
		string(SessionTypeCouples),
		string(SessionTypeAssessment),
		string(SessionTypeFollowUp),
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentWaived  PaymentStatus = "waived"
)

type PairingRequestStatus string

const (
	PairingRequestPending  PairingRequestStatus = "pending"
	PairingRequestApproved PairingRequestStatus = "approved"
	PairingRequestRejected PairingRequestStatus = "rejected"
	PairingRequestExpired  PairingRequestStatus = "expired"
)

type SessionFrequency string

const (
	FrequencyWeekly   SessionFrequency = "weekly"
	FrequencyBiweekly SessionFrequency = "biweekly"
	FrequencyMonthly  SessionFrequency = "monthly"
	FrequencyAsNeeded SessionFrequency = "as_needed"
)
