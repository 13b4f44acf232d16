package tablequery

import (
	"fmt"
	"strings"

	"github.com/Amund211/serverstats/internal/domain"
)

const likeEscape = "!"

// Condition is a single SQL boolean expression with positional (?) arguments
type Condition struct {
	Expr string
	Args []any
}

func Equals(field string, value any) Condition {
	return Condition{Expr: fmt.Sprintf("%s = ?", field), Args: []any{value}}
}

// Contains is a case insensitive substring match with LIKE wildcards in value escaped
func Contains(field string, value string) Condition {
	return Condition{
		Expr: fmt.Sprintf("LOWER(%s) LIKE LOWER(?) ESCAPE '%s'", field, likeEscape),
		Args: []any{"%" + EscapeLike(value) + "%"},
	}
}

// EndsWith is a case sensitive suffix match with LIKE wildcards in value escaped
func EndsWith(field string, value string) Condition {
	return Condition{
		Expr: fmt.Sprintf("%s LIKE ? ESCAPE '%s'", field, likeEscape),
		Args: []any{"%" + EscapeLike(value)},
	}
}

func EscapeLike(value string) string {
	replacer := strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	)
	return replacer.Replace(value)
}

type ordering struct {
	expr      string
	direction domain.SortDirection
}

// Builder assembles a filtered, ordered and paginated SELECT.
//
// Field and table expressions are trusted input from driver code. Only
// values passed as arguments may originate from requests.
type Builder struct {
	dialect Dialect

	columns    []string
	from       string
	joins      []Condition
	conditions []Condition
	orderings  []ordering

	limit  int
	offset int
}

func NewBuilder(dialect Dialect, from string) *Builder {
	return &Builder{
		dialect: dialect,
		from:    from,
	}
}

func (b *Builder) Dialect() Dialect {
	return b.dialect
}

func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Join adds a join clause. args bind to placeholders in the ON condition.
func (b *Builder) Join(clause string, args ...any) *Builder {
	b.joins = append(b.joins, Condition{Expr: clause, Args: args})
	return b
}

func (b *Builder) Where(condition Condition) *Builder {
	b.conditions = append(b.conditions, condition)
	return b
}

// Or is the disjunction of conditions
func Or(conditions ...Condition) Condition {
	exprs := make([]string, len(conditions))
	var args []any
	for i, condition := range conditions {
		exprs[i] = condition.Expr
		args = append(args, condition.Args...)
	}

	return Condition{
		Expr: "(" + strings.Join(exprs, " OR ") + ")",
		Args: args,
	}
}

func (b *Builder) WhereAny(conditions ...Condition) *Builder {
	if len(conditions) == 0 {
		return b
	}
	return b.Where(Or(conditions...))
}

func (b *Builder) OrderBy(expr string, direction domain.SortDirection) *Builder {
	b.orderings = append(b.orderings, ordering{expr: expr, direction: direction})
	return b
}

func (b *Builder) HasOrdering() bool {
	return len(b.orderings) > 0
}

func (b *Builder) Paginate(page, pageSize int) *Builder {
	b.limit = pageSize
	b.offset = (page - 1) * pageSize
	return b
}

func (b *Builder) writeFromAndWhere(sb *strings.Builder) []any {
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)

	var args []any
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join.Expr)
		args = append(args, join.Args...)
	}

	for i, condition := range b.conditions {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(condition.Expr)
		args = append(args, condition.Args...)
	}

	return args
}

// SQL renders the page query in the dialect's bind syntax
func (b *Builder) SQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.columns, ", "))
	}

	args := b.writeFromAndWhere(&sb)

	for i, o := range b.orderings {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(o.expr)
		if o.direction == domain.SortAscending {
			sb.WriteString(" ASC")
		} else {
			sb.WriteString(" DESC")
		}
	}

	if b.limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, b.limit, b.offset)
	}

	return b.dialect.Rebind(sb.String()), args
}

// CountSQL counts the rows matching the filters, ignoring ordering and pagination
func (b *Builder) CountSQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*)")
	args := b.writeFromAndWhere(&sb)
	return b.dialect.Rebind(sb.String()), args
}
