package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cloud.google.com/go/civil"

	"planner/internal/core"
)

func TestParseTermsForm(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		want      core.LoanTerms
		wantCur   core.Currency
		wantError bool
	}{
		{
			name:    "defaults for unit and currency",
			form:    url.Values{"principal": {"300000"}, "rate": {"5"}, "term": {"25"}},
			want:    core.LoanTerms{Principal: 300000, AnnualRate: 5, Term: 25, Unit: core.Years},
			wantCur: core.NOK,
		},
		{
			name:    "comma decimals and months",
			form:    url.Values{"principal": {"1 234,50"}, "rate": {"3,5"}, "term": {"18"}, "unit": {"months"}, "currency": {"eur"}},
			want:    core.LoanTerms{Principal: 1234.5, AnnualRate: 3.5, Term: 18, Unit: core.Months},
			wantCur: core.EUR,
		},
		{
			name:    "comma thousands",
			form:    url.Values{"principal": {"300,000"}, "rate": {"5"}, "term": {"600"}, "unit": {"months"}},
			want:    core.LoanTerms{Principal: 300000, AnnualRate: 5, Term: 600, Unit: core.Months},
			wantCur: core.NOK,
		},
		{
			name:    "month start date",
			form:    url.Values{"principal": {"1000"}, "rate": {"0"}, "term": {"1"}, "start": {"2025-03"}},
			want:    core.LoanTerms{Principal: 1000, Term: 1, Unit: core.Years, StartDate: civil.Date{Year: 2025, Month: 3, Day: 1}},
			wantCur: core.NOK,
		},
		{name: "zero principal", form: url.Values{"principal": {"0"}, "rate": {"5"}, "term": {"25"}}, wantError: true},
		{name: "negative rate", form: url.Values{"principal": {"1000"}, "rate": {"-1"}, "term": {"25"}}, wantError: true},
		{name: "fractional term", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"2.5"}}, wantError: true},
		{name: "zero term", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"0"}}, wantError: true},
		{name: "unknown unit", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"2"}, "unit": {"weeks"}}, wantError: true},
		{name: "bad start", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"2"}, "start": {"soon"}}, wantError: true},
		{name: "term over limit", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"50000000"}, "unit": {"months"}}, wantError: true},
		{name: "years overflowing months", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"4611686018427387906"}}, wantError: true},
		{name: "infinite principal", form: url.Values{"principal": {"1e400"}, "rate": {"1"}, "term": {"2"}}, wantError: true},
		{name: "bad currency", form: url.Values{"principal": {"1000"}, "rate": {"1"}, "term": {"2"}, "currency": {"XYZ"}}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cur, err := parseTermsForm(tt.form, core.NOK)
			if tt.wantError {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Fatalf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("terms = %+v, want %+v", got, tt.want)
			}
			if cur != tt.wantCur {
				t.Errorf("currency = %s, want %s", cur, tt.wantCur)
			}
		})
	}
}

func TestParsePersonForm(t *testing.T) {
	p, err := parsePersonForm(url.Values{"name": {" Alice "}, "salary": {"600000"}, "currency": {"NOK"}}, core.EUR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Alice" || p.Salary != 600000 || p.Assets != 0 || p.Currency != core.NOK {
		t.Errorf("person = %+v", p)
	}

	if _, err := parsePersonForm(url.Values{"name": {""}}, core.EUR); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name error = %v", err)
	}
	if _, err := parsePersonForm(url.Values{"name": {"Bob"}, "salary": {"lots"}}, core.EUR); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("bad salary error = %v", err)
	}
}

func TestParseSharesForm(t *testing.T) {
	form := url.Values{
		"stakeholders": {"Alice", "Bob", "Alice", ""},
		"share_mode":   {"custom"},
		"pct_Alice":    {"30"},
		"pct_Bob":      {"70"},
	}
	names, mode, custom, err := parseSharesForm(form)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(names, ",") != "Alice,Bob" {
		t.Errorf("names = %v", names)
	}
	if mode != core.ShareCustom {
		t.Errorf("mode = %s", mode)
	}
	if custom["Alice"] != 30 || custom["Bob"] != 70 {
		t.Errorf("custom = %v", custom)
	}

	_, mode, custom, err = parseSharesForm(url.Values{"stakeholders": {"Alice"}})
	if err != nil || mode != core.ShareEqual || custom != nil {
		t.Errorf("default mode = %s, custom = %v, err = %v", mode, custom, err)
	}

	_, _, _, err = parseSharesForm(url.Values{"stakeholders": {"Alice"}, "share_mode": {"custom"}})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("missing custom share error = %v", err)
	}
	_, _, _, err = parseSharesForm(url.Values{"share_mode": {"by-height"}})
	if !errors.Is(err, core.ErrInvalidShareMode) {
		t.Errorf("bad mode error = %v", err)
	}
}

func TestParseLoanForm(t *testing.T) {
	form := url.Values{
		"name":         {"Mortgage"},
		"principal":    {"300000"},
		"rate":         {"5"},
		"term":         {"25"},
		"unit":         {"years"},
		"currency":     {"NOK"},
		"stakeholders": {"Alice", "Bob"},
		"share_mode":   {"salary"},
	}
	loan, err := parseLoanForm(form, core.EUR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Name != "Mortgage" || loan.Terms.TotalMonths() != 300 || loan.ShareMode != core.ShareSalary {
		t.Errorf("loan = %+v", loan)
	}
	if len(loan.Stakeholders) != 2 {
		t.Errorf("stakeholders = %v", loan.Stakeholders)
	}

	form.Set("name", "")
	if _, err := parseLoanForm(form, core.EUR); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("empty name error = %v", err)
	}
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/loans", nil)
	resp := RequirePOST(req)
	if resp == nil {
		t.Fatal("GET should be rejected")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "POST" {
		t.Errorf("status = %d, allow = %q", w.Code, w.Header().Get("Allow"))
	}

	if RequireMethod(httptest.NewRequest(http.MethodDelete, "/loans/delete", nil), http.MethodPost, http.MethodDelete) != nil {
		t.Error("DELETE should be allowed")
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/people", strings.NewReader("name=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := ParseFormOrFail(req)
	if resp == nil {
		t.Fatal("malformed body should fail")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUserMessage(t *testing.T) {
	if got := userMessage(core.ErrNonPositivePrincipal); got != "Principal must be positive" {
		t.Errorf("userMessage = %q", got)
	}
	if got := sanitizeInput(" Al\x00ice\t"); got != "Alice" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
