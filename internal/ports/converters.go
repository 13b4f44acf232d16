package ports

import (
	"strconv"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
)

type pageResponse struct {
	Draw            any                    `json:"draw"`
	RecordsTotal    int                    `json:"recordsTotal"`
	RecordsFiltered int                    `json:"recordsFiltered"`
	Data            []domain.NormalizedRow `json:"data"`
}

// The draw token is numeric for DataTables clients, but echoed as is otherwise
// drawValue echoes canonical integers as numbers, anything else verbatim
func drawValue(token string) any {
	if draw, err := strconv.Atoi(token); err == nil && strconv.Itoa(draw) == token {
		return draw
	}
	return token
}

func pageToResponse(page domain.PageResult) pageResponse {
	rows := page.Rows
	if rows == nil {
		rows = []domain.NormalizedRow{}
	}
	return pageResponse{
		Draw:            drawValue(page.DrawToken),
		RecordsTotal:    page.TotalCount,
		RecordsFiltered: page.FilteredCount,
		Data:            rows,
	}
}

type columnResponse struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Visible    bool     `json:"visible"`
	Orderable  bool     `json:"orderable"`
	Searchable bool     `json:"searchable"`
	Combine    []string `json:"combine,omitempty"`
	Link       string   `json:"link,omitempty"`
}

type columnsResponse struct {
	Columns []columnResponse `json:"columns"`
	// [[columnIndex, direction]]
	Order [][2]any `json:"order"`
}

func columnsToResponse(schema domain.SchemaDescriptor) columnsResponse {
	columns := make([]columnResponse, 0, len(schema.Columns))
	order := [][2]any{}
	for i, column := range schema.Columns {
		columns = append(columns, columnResponse{
			Name:       column.Name,
			Label:      column.Label,
			Type:       string(column.Type),
			Visible:    column.Visible,
			Orderable:  column.Orderable && column.Field != "",
			Searchable: column.Searchable && column.Field != "",
			Combine:    column.Combine,
			Link:       column.Link,
		})
		if column.DefaultOrder {
			direction := column.DefaultDirection
			if direction == "" {
				direction = domain.SortDescending
			}
			order = append(order, [2]any{i, string(direction)})
		}
	}
	return columnsResponse{Columns: columns, Order: order}
}

type serverResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Mod     int    `json:"mod"`
}

type blockResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

func blocksToResponse(blocks []domain.BlockDefinition) []blockResponse {
	result := make([]blockResponse, 0, len(blocks))
	for _, block := range blocks {
		result = append(result, blockResponse{Key: block.Key, Label: block.LabelRef, Icon: block.IconRef})
	}
	return result
}

type userStatsResponse struct {
	Success bool            `json:"success"`
	Server  serverResponse  `json:"server"`
	Driver  string          `json:"driver"`
	Blocks  []blockResponse `json:"blocks"`
	Stats   map[string]any  `json:"stats"`
}

func summaryToResponse(summary domain.UserStatsSummary) userStatsResponse {
	stats := summary.Metrics
	if stats == nil {
		stats = map[string]any{}
	}
	return userStatsResponse{
		Success: true,
		Server: serverResponse{
			ID:      summary.Server.ID,
			Name:    summary.Server.Name,
			Address: summary.Server.Address,
			Mod:     summary.Server.Mod,
		},
		Driver: summary.DriverName,
		Blocks: blocksToResponse(summary.Blocks),
		Stats:  stats,
	}
}

type profileStatsResponse struct {
	Success bool                `json:"success"`
	Servers []userStatsResponse `json:"servers"`
}

type driverResponse struct {
	Name   string          `json:"name"`
	Mods   []int           `json:"mods"`
	Blocks []blockResponse `json:"blocks"`
}

func driversToResponse(ds []drivers.Driver) []driverResponse {
	result := make([]driverResponse, 0, len(ds))
	for _, driver := range ds {
		result = append(result, driverResponse{
			Name:   driver.Name(),
			Mods:   driver.SupportedMods(),
			Blocks: blocksToResponse(driver.Blocks()),
		})
	}
	return result
}
