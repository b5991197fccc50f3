// Package access computes which registry records a caller may see.
//
// Every rule takes the caller explicitly. Staff see everything; everyone
// else sees only records they own or participate in.
package access

import (
	"context"
	"fmt"
)

// Caller is the authenticated identity a request acts on behalf of.
type Caller struct {
	AccountID string
	IsStaff   bool
}

// OwnerFilter restricts profile queries to the caller's own account unless All is set.
type OwnerFilter struct {
	All       bool
	AccountID string
}

// Owner returns the profile filter for c.
func Owner(c Caller) OwnerFilter {
	if c.IsStaff {
		return OwnerFilter{All: true}
	}
	return OwnerFilter{AccountID: c.AccountID}
}

// Allows reports whether a profile owned by accountID passes the filter.
func (f OwnerFilter) Allows(accountID string) bool {
	return f.All || (f.AccountID != "" && f.AccountID == accountID)
}

// ScopeKind identifies which branch of the assignment visibility rule applied.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeAll
	ScopeDoctor
	ScopePatient
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAll:
		return "all"
	case ScopeDoctor:
		return "doctor"
	case ScopePatient:
		return "patient"
	default:
		return "none"
	}
}

// Scope is the resolved assignment visibility of one caller.
// ProfileID holds the doctor or patient profile id for the participant kinds.
type Scope struct {
	Kind      ScopeKind
	ProfileID string
}

// Allows reports whether an assignment between patientID and doctorID is visible.
func (s Scope) Allows(patientID, doctorID string) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeDoctor:
		return doctorID == s.ProfileID
	case ScopePatient:
		return patientID == s.ProfileID
	default:
		return false
	}
}

// ProfileLookup resolves the profiles held by an account.
// The bool result is false when the account has no such profile.
type ProfileLookup interface {
	DoctorIDForAccount(ctx context.Context, accountID string) (string, bool, error)
	PatientIDForAccount(ctx context.Context, accountID string) (string, bool, error)
}

// AssignmentScope evaluates staff > doctor > patient > none for c.
func AssignmentScope(ctx context.Context, c Caller, lookup ProfileLookup) (Scope, error) {
	if c.IsStaff {
		return Scope{Kind: ScopeAll}, nil
	}
	if c.AccountID == "" {
		return Scope{Kind: ScopeNone}, nil
	}

	doctorID, ok, err := lookup.DoctorIDForAccount(ctx, c.AccountID)
	if err != nil {
		return Scope{}, fmt.Errorf("access: resolve doctor profile: %w", err)
	}
	if ok {
		return Scope{Kind: ScopeDoctor, ProfileID: doctorID}, nil
	}

	patientID, ok, err := lookup.PatientIDForAccount(ctx, c.AccountID)
	if err != nil {
		return Scope{}, fmt.Errorf("access: resolve patient profile: %w", err)
	}
	if ok {
		return Scope{Kind: ScopePatient, ProfileID: patientID}, nil
	}

	return Scope{Kind: ScopeNone}, nil
}
