package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// flavor renders $n placeholders for lib/pq.
var flavor = sqlbuilder.PostgreSQL

// Now renders the server-side timestamp so created_at/updated_at come from Postgres.
func Now() any {
	return sqlbuilder.Raw("NOW()")
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return flavor.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return flavor.NewUpdateBuilder()
}

// Model selects every db-tagged column of a row type.
type Model struct {
	st *sqlbuilder.Struct
}

func NewModel(row any) *Model {
	return &Model{st: sqlbuilder.NewStruct(row).For(flavor)}
}

func (m *Model) SelectFrom(table string) *sqlbuilder.SelectBuilder {
	return m.st.SelectFrom(table)
}
