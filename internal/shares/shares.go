// Package shares splits a shared cost between participants as percentages.
package shares

import (
	"fmt"
	"math"

	"planner/internal/core"
)

// Portion is the money one participant covers of a shared amount.
type Portion struct {
	Participant string
	Percent     float64
	Amount      float64
}

// EqualShares gives each of n participants 100/n percent.
func EqualShares(n int) ([]float64, error) {
	if n <= 0 {
		return nil, core.ErrNoParticipants
	}
	out := make([]float64, n)
	each := 100 / float64(n)
	for i := range out {
		out[i] = each
	}
	return out, nil
}

// SalaryWeightedShares weights each participant by their salary. The
// percentages are not rounded.
func SalaryWeightedShares(salaries []float64) ([]float64, error) {
	if len(salaries) == 0 {
		return nil, core.ErrEmptySalaries
	}
	var total float64
	for _, s := range salaries {
		if s < 0 || math.IsNaN(s) {
			return nil, core.ErrNegativeSalary
		}
		total += s
	}
	if total == 0 {
		return nil, core.ErrZeroSalaryTotal
	}
	out := make([]float64, len(salaries))
	for i, s := range salaries {
		out[i] = s / total * 100
	}
	return out, nil
}

// Allocate computes a ShareResult for people under mode. In custom mode the
// percentages come from custom, keyed by participant name, and are taken as
// entered. Every result is validated before it is returned.
func Allocate(people []core.Person, mode core.ShareMode, custom map[string]float64) (core.ShareResult, error) {
	if len(people) == 0 {
		return core.ShareResult{}, core.ErrNoParticipants
	}

	var (
		percents []float64
		err      error
	)
	switch mode {
	case core.ShareEqual, "":
		mode = core.ShareEqual
		percents, err = EqualShares(len(people))
	case core.ShareSalary:
		salaries := make([]float64, len(people))
		for i, p := range people {
			salaries[i] = p.Salary
		}
		percents, err = SalaryWeightedShares(salaries)
	case core.ShareCustom:
		percents, err = customShares(people, custom)
	default:
		return core.ShareResult{}, core.ErrInvalidShareMode
	}
	if err != nil {
		return core.ShareResult{}, fmt.Errorf("%s shares: %w", mode, err)
	}

	result := core.ShareResult{Mode: mode, Shares: make([]core.Share, len(people))}
	for i, p := range people {
		result.Shares[i] = core.Share{Participant: p.Name, Percent: percents[i]}
	}
	if err := result.Validate(); err != nil {
		return core.ShareResult{}, fmt.Errorf("%s shares: %w", mode, err)
	}
	return result, nil
}

func customShares(people []core.Person, custom map[string]float64) ([]float64, error) {
	known := make(map[string]struct{}, len(people))
	out := make([]float64, len(people))
	for i, p := range people {
		known[p.Name] = struct{}{}
		out[i] = custom[p.Name]
	}
	for name := range custom {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%q: %w", name, core.ErrUnknownParticipant)
		}
	}
	return out, nil
}

// Split applies a share result to amount. Each portion is rounded to cents
// independently, so portions may not add back to amount exactly.
func Split(amount float64, result core.ShareResult) []Portion {
	out := make([]Portion, 0, len(result.Shares))
	for _, s := range result.Shares {
		out = append(out, Portion{
			Participant: s.Participant,
			Percent:     s.Percent,
			Amount:      core.Round2(amount * s.Percent / 100),
		})
	}
	return out
}
