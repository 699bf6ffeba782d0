package engine

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
)

// ApplyQueryOverrides layers request query parameters over a copy of cfg:
//
//	filter[code]=ab          simple substring filter
//	filter[amount.gt]=10     advanced filter with an operator
//	sort=-amount,code        simple sort levels, "-" for descending
//	group=status&subgroup=x  grouping
//
// The working configuration itself is left untouched.
func ApplyQueryOverrides(c *fiber.Ctx, schema *metadata.Schema, cfg grid.Config) (grid.Config, error) {
	out := cfg.Clone()

	for key, val := range c.Queries() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		inner := key[7 : len(key)-1]
		field, op := parseFilterKey(inner)
		if !schema.HasField(field) {
			return out, unknownFieldError("filter", field)
		}
		if op == "" {
			out.SimpleFilters[field] = val
			continue
		}
		if !grid.FilterKindOf(schema.GetField(field)).Allows(grid.Operator(op)) {
			return out, &AppError{
				Code:    "INVALID_OPERATOR",
				Status:  400,
				Message: fmt.Sprintf("Operator %s does not apply to %s", op, field),
			}
		}
		out.AdvancedFilters = append(out.AdvancedFilters, grid.AdvancedFilter{
			Field:    field,
			Operator: grid.Operator(op),
			Value:    val,
		})
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		var sorts []grid.SimpleSort
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			dir := grid.Asc
			if strings.HasPrefix(part, "-") {
				dir = grid.Desc
				part = part[1:]
			}
			if !schema.HasField(part) {
				return out, unknownFieldError("sort", part)
			}
			sorts = append(sorts, grid.SimpleSort{Column: part, Direction: dir})
		}
		out.SimpleSorts = sorts
		out.SimpleSortOn = true
	}

	if group := c.Query("group"); group != "" {
		if !schema.HasField(group) {
			return out, unknownFieldError("group", group)
		}
		out.GroupBy = group
	}
	if sub := c.Query("subgroup"); sub != "" {
		if !schema.HasField(sub) {
			return out, unknownFieldError("subgroup", sub)
		}
		out.SubGroupBy = sub
	}

	return out, nil
}

// parseFilterKey splits "amount.gt" into ("amount", "gt") and "code" into
// ("code", "").
func parseFilterKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, ""
}

func unknownFieldError(param, field string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_FIELD",
		Status:  400,
		Message: fmt.Sprintf("Unknown %s field: %s", param, field),
	}
}
