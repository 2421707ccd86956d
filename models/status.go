package models

// LeadStatus is either one of the system statuses below or a tenant-defined
// intermediate label from Branch.LeadStatuses.
type LeadStatus string

const (
	LeadFresh     LeadStatus = "Fresh"
	LeadConverted LeadStatus = "Converted"
	LeadBooked    LeadStatus = "Booked"
	LeadNoShow    LeadStatus = "No-Show"
	LeadRefollow  LeadStatus = "Re-follow"
	LeadLost      LeadStatus = "Lost"
)

// SystemLeadStatuses are valid in every branch regardless of configuration.
var SystemLeadStatuses = []LeadStatus{LeadFresh, LeadConverted, LeadBooked, LeadNoShow, LeadRefollow, LeadLost}

// ClosedLeadStatuses do not count towards the one-open-lead-per-contact rule.
var ClosedLeadStatuses = []LeadStatus{LeadConverted, LeadLost, LeadNoShow, LeadRefollow}

func (s LeadStatus) IsSystem() bool {
	for _, st := range SystemLeadStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsOpen reports whether a lead in this status blocks another open lead for
// the same contact.
func (s LeadStatus) IsOpen() bool {
	for _, st := range ClosedLeadStatuses {
		if s == st {
			return false
		}
	}
	return true
}

// RequiresConversion is true for statuses that can only be reached through
// the conversion flow, never through a plain field update.
func (s LeadStatus) RequiresConversion() bool {
	return s == LeadConverted || s == LeadBooked
}

type CustomerStatus string

const (
	CustomerBooked      CustomerStatus = "Booked"
	CustomerRescheduled CustomerStatus = "Rescheduled"
	CustomerShowed      CustomerStatus = "Showed"
	CustomerNoShow      CustomerStatus = "No-Show"
)

type AppointmentStatus string

const (
	AppointmentScheduled   AppointmentStatus = "Scheduled"
	AppointmentConfirmed   AppointmentStatus = "Confirmed"
	AppointmentInProgress  AppointmentStatus = "In Progress"
	AppointmentCompleted   AppointmentStatus = "Completed"
	AppointmentCancelled   AppointmentStatus = "Cancelled"
	AppointmentNoShow      AppointmentStatus = "No-Show"
	AppointmentRescheduled AppointmentStatus = "Rescheduled"
)

var AppointmentStatuses = []AppointmentStatus{
	AppointmentScheduled, AppointmentConfirmed, AppointmentInProgress, AppointmentCompleted,
	AppointmentCancelled, AppointmentNoShow, AppointmentRescheduled,
}

func (s AppointmentStatus) Valid() bool {
	for _, st := range AppointmentStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsOpen reports whether the appointment can still happen.
func (s AppointmentStatus) IsOpen() bool {
	switch s {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentInProgress, AppointmentRescheduled:
		return true
	}
	return false
}

// CustomerStatusFor maps an appointment status onto the parent customer's
// status. ok is false when the customer status must stay unchanged.
func CustomerStatusFor(s AppointmentStatus) (status CustomerStatus, ok bool) {
	switch s {
	case AppointmentNoShow:
		return CustomerNoShow, true
	case AppointmentCompleted:
		return CustomerShowed, true
	case AppointmentScheduled, AppointmentConfirmed:
		return CustomerBooked, true
	}
	return "", false
}

const (
	TicketOpen       = "Open"
	TicketInProgress = "In Progress"
	TicketResolved   = "Resolved"
	TicketClosed     = "Closed"

	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)
