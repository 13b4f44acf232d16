package domain

import (
	"fmt"
	"math"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// MaxPage keeps Offset from overflowing
const MaxPage = math.MaxInt / MaxPageSize

type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// ParseSortDirection defaults to descending for anything but "asc"
func ParseSortDirection(raw string) SortDirection {
	if raw == "asc" || raw == "ASC" {
		return SortAscending
	}
	return SortDescending
}

type ColumnSpec struct {
	Name        string
	Searchable  bool
	Orderable   bool
	SearchValue string
}

type OrderSpec struct {
	ColumnIndex int
	Direction   SortDirection
}

// TableQuery is a generic table read request as sent by the leaderboard UI.
//
// DrawToken is opaque and echoed back unchanged.
type TableQuery struct {
	Page      int
	PageSize  int
	DrawToken string

	Columns      []ColumnSpec
	GlobalSearch string
	Order        []OrderSpec
}

func (q TableQuery) Validate() error {
	if q.Page < 1 || q.Page > MaxPage {
		return fmt.Errorf("%w: page must be in [1, %d], got %d", ErrInvalidTableQuery, MaxPage, q.Page)
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page size must be in [1, %d], got %d", ErrInvalidTableQuery, MaxPageSize, q.PageSize)
	}
	return nil
}

// Normalize clamps the page to [1, MaxPage] and the page size to [1, MaxPageSize].
// A missing page size becomes DefaultPageSize.
func (q TableQuery) Normalize() TableQuery {
	q.Page = min(max(q.Page, 1), MaxPage)
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	q.PageSize = min(q.PageSize, MaxPageSize)
	return q
}

func (q TableQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type DisplayType string

const (
	DisplayText     DisplayType = "text"
	DisplayImage    DisplayType = "image"
	DisplayCombined DisplayType = "combined"
	DisplayHidden   DisplayType = "hidden"
)

// Column is one position in a driver's normalized row.
//
// Field is the storage expression backing the column. Columns without a Field
// can not be searched or ordered on. A column with an empty Name is a display
// slot combining other columns and always holds "".
type Column struct {
	Name  string
	Label string
	Field string
	Type  DisplayType

	Visible          bool
	Orderable        bool
	Searchable       bool
	DefaultOrder     bool
	DefaultDirection SortDirection

	// For DisplayCombined: the columns rendered together, and the column holding the link
	Combine []string
	Link    string
}

type SchemaDescriptor struct {
	Columns []Column
}

func (s SchemaDescriptor) Names() []string {
	names := make([]string, len(s.Columns))
	for i, column := range s.Columns {
		names[i] = column.Name
	}
	return names
}

// Column finds a named column. The empty name never matches.
func (s SchemaDescriptor) Column(name string) (Column, bool) {
	if name == "" {
		return Column{}, false
	}
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

func (s SchemaDescriptor) DefaultOrder() (Column, bool) {
	for _, column := range s.Columns {
		if column.DefaultOrder && column.Orderable && column.Field != "" {
			return column, true
		}
	}
	return Column{}, false
}

// Normalize produces the fixed-order row consumers index by position.
// Missing values and combined slots are "".
func (s SchemaDescriptor) Normalize(values map[string]any) NormalizedRow {
	row := make(NormalizedRow, len(s.Columns))
	for i, column := range s.Columns {
		if column.Name == "" {
			row[i] = ""
			continue
		}
		value, ok := values[column.Name]
		if !ok || value == nil {
			row[i] = ""
			continue
		}
		row[i] = value
	}
	return row
}

type NormalizedRow []any

type PageResult struct {
	DrawToken     string
	TotalCount    int
	FilteredCount int
	Rows          []NormalizedRow
}

func EmptyPage(drawToken string) PageResult {
	return PageResult{
		DrawToken:     drawToken,
		TotalCount:    0,
		FilteredCount: 0,
		Rows:          []NormalizedRow{},
	}
}
