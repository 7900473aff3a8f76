// Package prompt renders a tenant profile into the system instruction that
// sets the assistant's persona for a call.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"call-assistant/internal/tenants"
)

const (
	noStaff    = "none listed"
	noPayments = "no listed insurances"
	notGiven   = "not provided"
	noName     = "the office"
)

// Compile is a pure function of the profile. It never includes caller speech,
// so transcript content cannot rewrite the persona.
func Compile(p tenants.Profile) string {
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = noName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a polite, helpful phone receptionist for %s. ", name)
	b.WriteString("Keep answers short and conversational; they are read aloud to a caller. ")
	b.WriteString("Use only the facts below. If you do not know something, say so and offer to take a message.\n")
	fmt.Fprintf(&b, "Staff: %s.\n", staffLine(p.Staff))
	fmt.Fprintf(&b, "Accepted insurance: %s.\n", orDefault(paymentsLine(p.AcceptedPayments), noPayments))
	fmt.Fprintf(&b, "Office hours: %s.\n", orDefault(p.Hours, notGiven))
	fmt.Fprintf(&b, "Address: %s.", orDefault(p.Address, notGiven))
	return b.String()
}

func staffLine(staff []tenants.StaffMember) string {
	parts := make([]string, 0, len(staff))
	for _, s := range staff {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s, %s scheduler)",
			strings.TrimSpace(s.Name), strings.TrimSpace(s.Specialty), strings.TrimSpace(s.SchedulingPolicy)))
	}
	if len(parts) == 0 {
		return noStaff
	}
	return strings.Join(parts, ", ")
}

// paymentsLine sorts a copy; the input is a set and the output must be stable.
func paymentsLine(payments []string) string {
	out := make([]string, 0, len(payments))
	for _, p := range payments {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// orDefault drops one trailing period; every line adds its own.
func orDefault(v, def string) string {
	v = strings.TrimSuffix(strings.TrimSpace(v), ".")
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
