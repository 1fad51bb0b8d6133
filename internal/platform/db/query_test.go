package db

import (
	"testing"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/policy"
)

func TestWhereBuilderEmpty(t *testing.T) {
	b := NewWhereBuilder()
	if b.SQL() != "" {
		t.Errorf("SQL() = %q, want empty", b.SQL())
	}
	if b.Next() != 1 {
		t.Errorf("Next() = %d, want 1", b.Next())
	}
}

func TestWhereBuilderScopeGrouping(t *testing.T) {
	hospitalID := uuid.New()
	b := NewWhereBuilder().
		Scope(policy.Scope{Any: []policy.Clause{
			{{Field: "referring_hospital_id", Value: hospitalID}},
			{{Field: "receiving_hospital_id", Value: hospitalID}},
		}}).
		Eq("status", "pending").
		Search("chest pain", "reason", "diagnosis")

	want := " WHERE (referring_hospital_id = $1 OR receiving_hospital_id = $2)" +
		" AND status = $3 AND (reason ILIKE $4 OR diagnosis ILIKE $4)"
	if b.SQL() != want {
		t.Errorf("SQL() = %q\nwant     %q", b.SQL(), want)
	}
	if len(b.Args()) != 4 {
		t.Errorf("got %d args, want 4", len(b.Args()))
	}
	if b.Args()[3] != "%chest pain%" {
		t.Errorf("search arg = %v", b.Args()[3])
	}
}

func TestWhereBuilderConjunctiveClause(t *testing.T) {
	hospitalID := uuid.New()
	b := NewWhereBuilder().Scope(policy.Scope{Any: []policy.Clause{
		{{Field: "hospital_id", Value: hospitalID}},
		{
			{Field: "role", Value: "doctor"},
			{Field: "approval_status", Value: "approved"},
		},
	}})

	want := " WHERE (hospital_id = $1 OR (role = $2 AND approval_status = $3))"
	if b.SQL() != want {
		t.Errorf("SQL() = %q\nwant     %q", b.SQL(), want)
	}
	if len(b.Args()) != 3 {
		t.Errorf("got %d args, want 3", len(b.Args()))
	}
}

func TestWhereBuilderNoneScope(t *testing.T) {
	b := NewWhereBuilder().Scope(policy.Scope{None: true})
	if b.SQL() != " WHERE FALSE" {
		t.Errorf("SQL() = %q, want WHERE FALSE", b.SQL())
	}
}

func TestWhereBuilderUnrestrictedScope(t *testing.T) {
	b := NewWhereBuilder().Scope(policy.Scope{Unrestricted: true}).Eq("role", "doctor")
	if b.SQL() != " WHERE role = $1" {
		t.Errorf("SQL() = %q", b.SQL())
	}
}
