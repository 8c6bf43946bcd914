// Package http provides HTTP server and handler implementations.
//
// This file turns submitted forms into domain values. Every failure wraps
// core.ErrInvalidInput so handlers can answer 422 with the message as is.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"planner/internal/core"
)

// sharePrefix prefixes the custom percentage field of each stakeholder,
// e.g. "pct_Alice".
const sharePrefix = "pct_"

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Malformed form submission")
	}
	return nil
}

func field(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

// amountField parses an amount field. Blank fields yield def when allowBlank
// is set.
func amountField(form url.Values, key, label string, allowBlank bool, def float64) (float64, error) {
	v := field(form, key)
	if v == "" && allowBlank {
		return def, nil
	}
	n, err := core.ParseAmount(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	return n, nil
}

func currencyField(form url.Values, fallback core.Currency) (core.Currency, error) {
	v := field(form, "currency")
	if v == "" {
		return fallback, nil
	}
	return core.ParseCurrency(v)
}

func parsePersonForm(form url.Values, fallback core.Currency) (core.Person, error) {
	p := core.Person{Name: field(form, "name")}
	var err error
	if p.Salary, err = amountField(form, "salary", "salary", true, 0); err != nil {
		return core.Person{}, err
	}
	if p.Assets, err = amountField(form, "assets", "assets", true, 0); err != nil {
		return core.Person{}, err
	}
	if p.Currency, err = currencyField(form, fallback); err != nil {
		return core.Person{}, err
	}
	return p, p.Validate()
}

// parseTermsForm reads principal, rate, term, unit, currency and the
// optional start (YYYY-MM-DD or YYYY-MM).
func parseTermsForm(form url.Values, fallback core.Currency) (core.LoanTerms, core.Currency, error) {
	var (
		t   core.LoanTerms
		err error
	)
	if t.Principal, err = amountField(form, "principal", "loan amount", false, 0); err != nil {
		return core.LoanTerms{}, "", err
	}
	if t.AnnualRate, err = amountField(form, "rate", "interest rate", false, 0); err != nil {
		return core.LoanTerms{}, "", err
	}

	term := field(form, "term")
	if t.Term, err = strconv.Atoi(term); err != nil {
		return core.LoanTerms{}, "", fmt.Errorf("%w: loan term must be a whole number", core.ErrInvalidInput)
	}

	t.Unit = core.Years
	if v := field(form, "unit"); v != "" {
		if t.Unit, err = core.ParseTermUnit(v); err != nil {
			return core.LoanTerms{}, "", err
		}
	}

	if v := field(form, "start"); v != "" {
		if len(v) == len("2006-01") {
			v += "-01"
		}
		if t.StartDate, err = civil.ParseDate(v); err != nil {
			return core.LoanTerms{}, "", fmt.Errorf("%w: start date must look like 2025-01-31", core.ErrInvalidInput)
		}
	}

	c, err := currencyField(form, fallback)
	if err != nil {
		return core.LoanTerms{}, "", err
	}
	return t, c, t.Validate()
}

// parseSharesForm reads the selected stakeholders, the share mode and, in
// custom mode, one percentage per stakeholder.
func parseSharesForm(form url.Values) ([]string, core.ShareMode, map[string]float64, error) {
	var names []string
	seen := make(map[string]struct{})
	for _, v := range form["stakeholders"] {
		name := sanitizeInput(v)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	mode, err := core.ParseShareMode(field(form, "share_mode"))
	if err != nil {
		return nil, "", nil, err
	}
	if mode != core.ShareCustom {
		return names, mode, nil, nil
	}

	custom := make(map[string]float64, len(names))
	for _, name := range names {
		pct, err := amountField(form, sharePrefix+name, "share of "+name, false, 0)
		if err != nil {
			return nil, "", nil, err
		}
		custom[name] = pct
	}
	return names, mode, custom, nil
}

func parseLoanForm(form url.Values, fallback core.Currency) (core.Loan, error) {
	terms, currency, err := parseTermsForm(form, fallback)
	if err != nil {
		return core.Loan{}, err
	}
	names, mode, custom, err := parseSharesForm(form)
	if err != nil {
		return core.Loan{}, err
	}
	loan := core.Loan{
		Name:         field(form, "name"),
		Terms:        terms,
		Currency:     currency,
		Stakeholders: names,
		ShareMode:    mode,
		CustomShares: custom,
	}
	return loan, loan.Validate()
}
