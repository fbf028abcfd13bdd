package model

import (
	"time"

	"github.com/eleven-am/todoapi/internal/orm"
)

// TitleMaxLength is the longest title a todo may carry, in characters
const TitleMaxLength = 30

// Todo represents a todo item bound to exactly one owner
type Todo struct {
	_ struct{} `dbdef:"table:todos;index:idx_todos_user_created,user_id,created_at"`

	ID        string    `db:"id" dbdef:"type:uuid;primary_key"`
	UserID    string    `db:"user_id" dbdef:"type:uuid;not_null;foreign_key:users.id;on_delete:CASCADE"`
	Title     string    `db:"title" dbdef:"type:varchar(30);not_null"`
	Done      bool      `db:"done" dbdef:"type:boolean;not_null;default:false"`
	CreatedAt time.Time `db:"created_at" dbdef:"type:timestamptz;not_null;default:now()"`
}

// TodoColumns provides typed column references for the todos table
type TodoColumns struct {
	ID        orm.Column[string]
	UserID    orm.Column[string]
	Title     orm.StringColumn
	Done      orm.BoolColumn
	CreatedAt orm.TimeColumn
}

// Todos is the column set used to build todo queries
var Todos = TodoColumns{
	ID:        orm.Column[string]{Name: "id", Table: "todos"},
	UserID:    orm.Column[string]{Name: "user_id", Table: "todos"},
	Title:     orm.StringColumn{Column: orm.Column[string]{Name: "title", Table: "todos"}},
	Done:      orm.BoolColumn{Column: orm.Column[bool]{Name: "done", Table: "todos"}},
	CreatedAt: orm.TimeColumn{Column: orm.Column[time.Time]{Name: "created_at", Table: "todos"}},
}

// TodoMetadata maps Todo onto the todos table
var TodoMetadata = &orm.ModelMetadata{
	TableName:  "todos",
	PrimaryKey: "id",
	Columns:    []string{"id", "user_id", "title", "done", "created_at"},
}
