package ports

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Amund211/serverstats/internal/domain"
)

const (
	maxTableColumns = 64
	maxTableOrders  = 8
)

// ParseTableQuery reads DataTables server side processing parameters from the
// query string or a form encoded body. The result is normalized.
func ParseTableQuery(r *http.Request) (domain.TableQuery, error) {
	if err := r.ParseForm(); err != nil {
		return domain.TableQuery{}, fmt.Errorf("%w: %w", domain.ErrInvalidTableQuery, err)
	}
	form := r.Form

	intParam := func(key string, fallback int) (int, error) {
		raw := strings.TrimSpace(form.Get(key))
		if raw == "" {
			return fallback, nil
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer (%q)", domain.ErrInvalidTableQuery, key, raw)
		}
		return value, nil
	}

	draw := form.Get("draw")
	if draw == "" {
		draw = "0"
	}

	pageSize, err := intParam("length", domain.DefaultPageSize)
	if err != nil {
		return domain.TableQuery{}, err
	}

	page, err := intParam("page", 1)
	if err != nil {
		return domain.TableQuery{}, err
	}
	if form.Has("start") {
		start, err := intParam("start", 0)
		if err != nil {
			return domain.TableQuery{}, err
		}
		if pageSize > 0 && start > 0 {
			page = min(start/pageSize, domain.MaxPage-1) + 1
		}
	}

	columns := []domain.ColumnSpec{}
	for i := range maxTableColumns {
		prefix := fmt.Sprintf("columns[%d]", i)
		if !form.Has(prefix+"[data]") && !form.Has(prefix+"[name]") {
			break
		}

		name := form.Get(prefix + "[name]")
		if name == "" {
			name = form.Get(prefix + "[data]")
		}
		columns = append(columns, domain.ColumnSpec{
			Name:        name,
			Searchable:  form.Get(prefix+"[searchable]") == "true",
			Orderable:   form.Get(prefix+"[orderable]") == "true",
			SearchValue: strings.TrimSpace(form.Get(prefix + "[search][value]")),
		})
	}

	order := []domain.OrderSpec{}
	for i := range maxTableOrders {
		key := fmt.Sprintf("order[%d][column]", i)
		if !form.Has(key) {
			break
		}
		columnIndex, err := intParam(key, 0)
		if err != nil {
			return domain.TableQuery{}, err
		}
		order = append(order, domain.OrderSpec{
			ColumnIndex: columnIndex,
			Direction:   domain.ParseSortDirection(form.Get(fmt.Sprintf("order[%d][dir]", i))),
		})
	}

	query := domain.TableQuery{
		Page:         page,
		PageSize:     pageSize,
		DrawToken:    draw,
		Columns:      columns,
		GlobalSearch: strings.TrimSpace(form.Get("search[value]")),
		Order:        order,
	}

	return query.Normalize(), nil
}
