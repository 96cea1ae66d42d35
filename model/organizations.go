// File: model/organizations.go
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Organization is the business role an MSP plays in the supply chain.
type Organization int

const (
	OrgUnknown Organization = iota
	OrgManufacturer
	OrgRegulator
	OrgLogistics
	OrgHealthProvider
)

func (o Organization) String() string {
	switch o {
	case OrgManufacturer:
		return "Manufacturer"
	case OrgRegulator:
		return "Regulator"
	case OrgLogistics:
		return "Logistics"
	case OrgHealthProvider:
		return "HealthProvider"
	case OrgUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Organization(%d)", int(o))
	}
}

// ParseOrganization resolves a role name as used in configuration.
func ParseOrganization(name string) (Organization, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "manufacturer":
		return OrgManufacturer, nil
	case "regulator":
		return OrgRegulator, nil
	case "logistics":
		return OrgLogistics, nil
	case "healthprovider", "health":
		return OrgHealthProvider, nil
	default:
		return OrgUnknown, fmt.Errorf("unknown organization '%s'", name)
	}
}

// PrincipalID identifies an accountable party. Custody is held at organization
// level, so a principal is an MSP ID (or the patient sentinel).
type PrincipalID string

// PatientPrincipal is the owner recorded once an asset leaves the supply chain.
const PatientPrincipal PrincipalID = "PATIENT"

// Caller is the resolved identity of the invoker of one transaction.
type Caller struct {
	Principal PrincipalID  // MSP ID of the invoking client
	Org       Organization // Role of that MSP according to the directory
	Submitter string       // Full X.509 identity string, kept for the audit trail
}

// Directory maps MSP IDs to the organization role they hold.
type Directory struct {
	members map[PrincipalID]Organization
}

// NewDirectory builds a directory from role -> MSP IDs. An MSP may hold a single role.
func NewDirectory(byOrg map[Organization][]string) (*Directory, error) {
	d := &Directory{members: make(map[PrincipalID]Organization)}
	for org, msps := range byOrg {
		if org == OrgUnknown {
			return nil, fmt.Errorf("cannot register MSPs for organization %s", org)
		}
		for _, msp := range msps {
			msp = strings.TrimSpace(msp)
			if msp == "" {
				continue
			}
			p := PrincipalID(msp)
			if existing, ok := d.members[p]; ok && existing != org {
				return nil, fmt.Errorf("MSP '%s' is mapped to both %s and %s", msp, existing, org)
			}
			d.members[p] = org
		}
	}
	return d, nil
}

// OrganizationOf returns the role of a principal, OrgUnknown if it is not a member.
func (d *Directory) OrganizationOf(p PrincipalID) Organization {
	if d == nil {
		return OrgUnknown
	}
	return d.members[p]
}

// Members returns the MSP IDs registered for org, sorted.
func (d *Directory) Members(org Organization) []string {
	out := []string{}
	if d == nil {
		return out
	}
	for p, o := range d.members {
		if o == org {
			out = append(out, string(p))
		}
	}
	sort.Strings(out)
	return out
}
