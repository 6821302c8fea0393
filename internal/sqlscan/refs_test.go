package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func refStrings(refs []TableRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

func TestTableRefs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{name: "unqualified", sql: "SELECT * FROM employees", want: []string{"employees"}},
		{name: "qualified", sql: "SELECT * FROM company.employees", want: []string{"company.employees"}},
		{name: "catalog qualified", sql: "SELECT * FROM corp.finance.payroll", want: []string{"finance.payroll"}},
		{name: "case folded", sql: "SELECT * FROM Company.Employees", want: []string{"company.employees"}},
		{name: "quoted", sql: `SELECT * FROM "Company"."Big Table"`, want: []string{"Company.Big Table"}},
		{
			name: "joins",
			sql:  "SELECT * FROM employees e LEFT JOIN finance.payroll p ON p.emp = e.id JOIN depts USING (id)",
			want: []string{"employees", "finance.payroll", "depts"},
		},
		{name: "comma list", sql: "SELECT * FROM employees e, payroll AS p, depts", want: []string{"employees", "payroll", "depts"}},
		{name: "subquery", sql: "SELECT * FROM (SELECT id FROM payroll) s", want: []string{"payroll"}},
		{name: "in subquery", sql: "SELECT * FROM a WHERE id IN (SELECT a_id FROM b)", want: []string{"a", "b"}},
		{name: "extract is not a table", sql: "SELECT EXTRACT(YEAR FROM hired_at) FROM employees", want: []string{"employees"}},
		{name: "function in from", sql: "SELECT * FROM generate_series(1, 3) g", want: []string{}},
		{name: "only", sql: "SELECT * FROM ONLY company.employees", want: []string{"company.employees"}},
		{name: "literal ignored", sql: "SELECT 'FROM ghosts' FROM employees", want: []string{"employees"}},
		{name: "comment ignored", sql: "SELECT 1 /* FROM ghosts */ FROM employees", want: []string{"employees"}},
		{name: "no from", sql: "SELECT 1", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refStrings(TableRefs(tt.sql)))
		})
	}
}

func TestTableRefSpan(t *testing.T) {
	sql := "SELECT * FROM finance.payroll WHERE x = 1"
	refs := TableRefs(sql)
	if assert.Len(t, refs, 1) {
		assert.Equal(t, "finance.payroll", sql[refs[0].Start:refs[0].End])
		assert.True(t, refs[0].Qualified())
	}
}
