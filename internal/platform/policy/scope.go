package policy

import "github.com/google/uuid"

// Condition is a single equality test a repository compiles into SQL.
type Condition struct {
	Field string
	Value any
}

// Clause is a conjunction: every condition in it must hold.
type Clause []Condition

// Scope narrows a listing query to the actor's visible subset. The
// clauses in Any are OR'd together and the whole group is AND'ed
// with caller-supplied filters. The nesting matters: free-text search
// terms form their own OR group, so a query compiles to
// (scope₁ OR scope₂) AND status = ? AND (search₁ OR search₂), never a
// flattened OR across every clause.
type Scope struct {
	// All rows are visible; no clause is emitted.
	Unrestricted bool
	// No rows are visible; the query must return nothing.
	None bool
	// Visible when every condition of any one clause matches.
	Any []Clause
}

func allScope() Scope  { return Scope{Unrestricted: true} }
func noneScope() Scope { return Scope{None: true} }

// ReferralScope returns the filter restricting a referral listing to
// the actor's visible referrals.
func ReferralScope(actor Actor) Scope {
	switch actor.Role {
	case RoleSuperAdmin:
		return allScope()
	case RoleHospital:
		if actor.HospitalID == nil {
			return noneScope()
		}
		return Scope{Any: []Clause{
			{{Field: "referring_hospital_id", Value: *actor.HospitalID}},
			{{Field: "receiving_hospital_id", Value: *actor.HospitalID}},
		}}
	case RoleDoctor:
		return Scope{Any: []Clause{
			{{Field: "referring_doctor_id", Value: actor.ID}},
			{{Field: "receiving_doctor_id", Value: actor.ID}},
		}}
	case RolePatient:
		return Scope{Any: []Clause{
			{{Field: "patient_id", Value: actor.ID}},
		}}
	}
	return noneScope()
}

// AccountScope returns the filter restricting an account listing.
// Hospital admins see their own hospital's accounts plus approved
// doctors anywhere; the referral-partner branch is limited to doctors
// so approved patients and super admins never leak across hospitals.
// Doctors and patients see only themselves.
func AccountScope(actor Actor) Scope {
	switch actor.Role {
	case RoleSuperAdmin:
		return allScope()
	case RoleHospital:
		if actor.HospitalID == nil {
			return noneScope()
		}
		return Scope{Any: []Clause{
			{{Field: "hospital_id", Value: *actor.HospitalID}},
			{
				{Field: "role", Value: string(RoleDoctor)},
				{Field: "approval_status", Value: string(ApprovalApproved)},
			},
		}}
	case RoleDoctor, RolePatient:
		return Scope{Any: []Clause{
			{{Field: "id", Value: actor.ID}},
		}}
	}
	return noneScope()
}

// SelfScope restricts a query to records owned by the actor, used by
// own-patients and own-analytics endpoints.
func SelfScope(actor Actor, field string) Scope {
	if actor.Role == RoleSuperAdmin {
		return allScope()
	}
	return Scope{Any: []Clause{{{Field: field, Value: actor.ID}}}}
}

// Matches evaluates the scope against a record presented as field
// values, mirroring the SQL compilation for in-memory stores and tests.
func (s Scope) Matches(fields map[string]any) bool {
	if s.Unrestricted {
		return true
	}
	if s.None {
		return false
	}
	for _, clause := range s.Any {
		if clauseMatches(clause, fields) {
			return true
		}
	}
	return false
}

func clauseMatches(clause Clause, fields map[string]any) bool {
	if len(clause) == 0 {
		return false
	}
	for _, c := range clause {
		v, ok := fields[c.Field]
		if !ok || !equalValue(v, c.Value) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if ua, ok := a.(uuid.UUID); ok {
		if ub, ok := b.(uuid.UUID); ok {
			return ua == ub
		}
	}
	if pa, ok := a.(*uuid.UUID); ok {
		if pa == nil {
			return false
		}
		if ub, ok := b.(uuid.UUID); ok {
			return *pa == ub
		}
	}
	return a == b
}
