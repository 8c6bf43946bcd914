// Package session holds the per-visitor planning state: the people and
// loans entered in the form host. State lives only as long as the session.
package session

import (
	"fmt"
	"maps"
	"slices"

	"planner/internal/core"
)

// Plan is the planning context passed into every operation. It keeps
// entries in insertion order and names unique within each collection.
// A Plan is not safe for concurrent use; stores hand out copies.
type Plan struct {
	People []core.Person `json:"people"`
	Loans  []core.Loan   `json:"loans"`
}

func NewPlan() *Plan {
	return &Plan{}
}

// PutPerson adds p or replaces the person with the same name.
func (p *Plan) PutPerson(person core.Person) error {
	if err := person.Validate(); err != nil {
		return err
	}
	if i := p.personIndex(person.Name); i >= 0 {
		p.People[i] = person
		return nil
	}
	p.People = append(p.People, person)
	return nil
}

// DeletePerson removes a person and drops them from every loan that
// listed them as a stakeholder. It reports whether the person existed.
func (p *Plan) DeletePerson(name string) bool {
	i := p.personIndex(name)
	if i < 0 {
		return false
	}
	p.People = slices.Delete(p.People, i, i+1)
	for li := range p.Loans {
		loan := &p.Loans[li]
		loan.Stakeholders = slices.DeleteFunc(loan.Stakeholders, func(s string) bool { return s == name })
		delete(loan.CustomShares, name)
	}
	return true
}

// PutLoan adds a loan or replaces the loan with the same name. Every
// stakeholder must already be a person in the plan.
func (p *Plan) PutLoan(loan core.Loan) error {
	if loan.ShareMode == "" {
		loan.ShareMode = core.ShareEqual
	}
	if err := loan.Validate(); err != nil {
		return err
	}
	for _, name := range loan.Stakeholders {
		if p.personIndex(name) < 0 {
			return fmt.Errorf("stakeholder %q: %w", name, core.ErrUnknownParticipant)
		}
	}
	for name := range loan.CustomShares {
		if !slices.Contains(loan.Stakeholders, name) {
			return fmt.Errorf("custom share for %q: %w", name, core.ErrUnknownParticipant)
		}
	}
	if i := p.loanIndex(loan.Name); i >= 0 {
		p.Loans[i] = loan
		return nil
	}
	p.Loans = append(p.Loans, loan)
	return nil
}

func (p *Plan) DeleteLoan(name string) bool {
	i := p.loanIndex(name)
	if i < 0 {
		return false
	}
	p.Loans = slices.Delete(p.Loans, i, i+1)
	return true
}

func (p *Plan) Person(name string) (core.Person, bool) {
	if i := p.personIndex(name); i >= 0 {
		return p.People[i], true
	}
	return core.Person{}, false
}

func (p *Plan) Loan(name string) (core.Loan, bool) {
	if i := p.loanIndex(name); i >= 0 {
		return p.Loans[i], true
	}
	return core.Loan{}, false
}

// FirstLoan is the loan the calculate action falls back to when none is
// chosen.
func (p *Plan) FirstLoan() (core.Loan, bool) {
	if len(p.Loans) == 0 {
		return core.Loan{}, false
	}
	return p.Loans[0], true
}

// Stakeholders resolves a loan's stakeholder names to people, in the order
// they were selected. Names no longer in the plan are skipped.
func (p *Plan) Stakeholders(loanName string) []core.Person {
	loan, ok := p.Loan(loanName)
	if !ok {
		return nil
	}
	out := make([]core.Person, 0, len(loan.Stakeholders))
	for _, name := range loan.Stakeholders {
		if person, ok := p.Person(name); ok {
			out = append(out, person)
		}
	}
	return out
}

func (p *Plan) IsEmpty() bool {
	return len(p.People) == 0 && len(p.Loans) == 0
}

// Clone returns a deep copy.
func (p *Plan) Clone() *Plan {
	out := &Plan{
		People: slices.Clone(p.People),
		Loans:  make([]core.Loan, len(p.Loans)),
	}
	for i, l := range p.Loans {
		l.Stakeholders = slices.Clone(l.Stakeholders)
		l.CustomShares = maps.Clone(l.CustomShares)
		out.Loans[i] = l
	}
	return out
}

func (p *Plan) personIndex(name string) int {
	return slices.IndexFunc(p.People, func(x core.Person) bool { return x.Name == name })
}

func (p *Plan) loanIndex(name string) int {
	return slices.IndexFunc(p.Loans, func(x core.Loan) bool { return x.Name == name })
}
