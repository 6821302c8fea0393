package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := map[string]string{
		"  SELECT 1;  ":      "SELECT 1",
		"SELECT 1;;":         "SELECT 1",
		"SELECT 1 ; ;":       "SELECT 1",
		"\n\tselect x from y": "select x from y",
		";":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Clean(in), "input %q", in)
	}
}

func TestLeadingKeyword(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM t":                 "SELECT",
		"  select 1":                      "SELECT",
		"DELETE FROM company.employees":   "DELETE",
		"with x as (select 1) select * x": "WITH",
		"/* note */ SELECT 1":             "SELECT",
		"(SELECT 1)":                      "",
		"SELECTION":                       "SELECTION",
		"":                                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, LeadingKeyword(in), "input %q", in)
	}
}

func TestContainsQualifier(t *testing.T) {
	assert.True(t, ContainsQualifier("SELECT * FROM company.employees", "company"))
	assert.True(t, ContainsQualifier("SELECT * FROM COMPANY.employees", "company"))
	assert.True(t, ContainsQualifier("SELECT 'company.' AS s FROM ghosts", "company"))
	assert.False(t, ContainsQualifier("SELECT * FROM ghosts", "company"))
	assert.False(t, ContainsQualifier("SELECT company FROM t", "company"))
}

func TestQualifiedSchemas(t *testing.T) {
	sql := "SELECT * FROM finance.payroll p JOIN company.employees e ON e.id = p.emp_id"
	assert.Equal(t, []string{"company", "finance"}, QualifiedSchemas(sql, []string{"company", "finance"}))
	assert.Empty(t, QualifiedSchemas("SELECT 1", []string{"company"}))
}

func TestInspect(t *testing.T) {
	st := Inspect("  select * from employees e join company.depts d on d.id = e.dept_id; ")
	assert.Equal(t, "select * from employees e join company.depts d on d.id = e.dept_id", st.Text)
	assert.Equal(t, "SELECT", st.Keyword)
	assert.Equal(t, "SELECT * FROM EMPLOYEES E JOIN COMPANY.DEPTS D ON D.ID = E.DEPT_ID", st.Upper)
	assert.Equal(t, []string{"employees"}, st.Unqualified())
}
