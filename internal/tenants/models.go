package tenants

// Profile is an immutable snapshot of the business being called.
// Resolvers return copies; nothing downstream mutates a Profile.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhoneNumber string `json:"phone_number"`

	Staff []StaffMember `json:"staff,omitempty"`

	// AcceptedPayments is a set (insurance plans, payment methods); order is not significant.
	AcceptedPayments []string `json:"accepted_payments,omitempty"`

	// Hours and Address are free text; empty means "not provided".
	Hours   string `json:"hours,omitempty"`
	Address string `json:"address,omitempty"`
}

// StaffMember is one bookable person at the tenant.
type StaffMember struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`

	// SchedulingPolicy describes how appointments are booked, e.g. "online" or "front desk".
	SchedulingPolicy string `json:"scheduling_policy"`
}

func (p Profile) clone() Profile {
	out := p
	if p.Staff != nil {
		out.Staff = append([]StaffMember(nil), p.Staff...)
	}
	if p.AcceptedPayments != nil {
		out.AcceptedPayments = append([]string(nil), p.AcceptedPayments...)
	}
	return out
}
