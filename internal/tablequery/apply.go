package tablequery

import (
	"github.com/Amund211/serverstats/internal/domain"
)

// GlobalSearch turns the free text search into the driver's filter
type GlobalSearch func(value string) Condition

// Apply adds the filters and orderings requested by query to b.
//
// Descriptor fields are quoted identifiers, optionally table qualified.
// Request column names are only used to look up descriptor columns, so no
// request string ever ends up in the SQL text. Order entries that are out of
// range or not orderable are dropped. When no order entry survives, the
// descriptor's default order is used. tiebreak, if not empty, is appended last
// to keep pagination stable, and must already be quoted.
func Apply(b *Builder, schema domain.SchemaDescriptor, query domain.TableQuery, globalSearch GlobalSearch, tiebreak string) *Builder {
	for _, spec := range query.Columns {
		if !spec.Searchable || spec.SearchValue == "" {
			continue
		}
		column, ok := schema.Column(spec.Name)
		if !ok || column.Field == "" || !column.Searchable {
			continue
		}
		b.Where(Contains(b.Dialect().Quote(column.Field), spec.SearchValue))
	}

	if query.GlobalSearch != "" && globalSearch != nil {
		b.Where(globalSearch(query.GlobalSearch))
	}

	for _, order := range query.Order {
		column, ok := OrderColumn(schema, query, order)
		if !ok {
			continue
		}
		b.OrderBy(b.Dialect().Quote(column.Field), order.Direction)
	}

	if !b.HasOrdering() {
		if column, ok := schema.DefaultOrder(); ok {
			direction := column.DefaultDirection
			if direction == "" {
				direction = domain.SortDescending
			}
			b.OrderBy(b.Dialect().Quote(column.Field), direction)
		}
	}

	if tiebreak != "" {
		b.OrderBy(tiebreak, domain.SortAscending)
	}

	return b.Paginate(query.Page, query.PageSize)
}

// OrderColumn resolves an order entry to an orderable descriptor column
func OrderColumn(schema domain.SchemaDescriptor, query domain.TableQuery, order domain.OrderSpec) (domain.Column, bool) {
	if order.ColumnIndex < 0 || order.ColumnIndex >= len(query.Columns) {
		return domain.Column{}, false
	}

	spec := query.Columns[order.ColumnIndex]
	if !spec.Orderable {
		return domain.Column{}, false
	}

	column, ok := schema.Column(spec.Name)
	if !ok || !column.Orderable || column.Field == "" {
		return domain.Column{}, false
	}

	return column, true
}
