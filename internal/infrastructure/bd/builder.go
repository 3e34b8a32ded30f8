package db

import (
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"crf-system/pkg/types"
)

// Суффиксы filter[...] для диапазонов: filter[created_at_from]=2026-01-01
const (
	rangeFromSuffix = "_from"
	rangeToSuffix   = "_to"
)

// ListSpec описывает, что в списке можно фильтровать, искать и сортировать.
type ListSpec struct {
	// json-поле -> колонка; неизвестные поля молча пропускаются
	Fields map[string]string
	// колонки для ILIKE по ?search=
	SearchColumns []string
	// сортировка, если клиент ее не передал
	DefaultOrder []string
	// последний ключ сортировки, чтобы страницы не пересекались
	TieBreaker string
}

// ApplyFilters добавляет WHERE по filter[...] и search. Подходит и для COUNT.
func (s ListSpec) ApplyFilters(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	for _, jsonField := range sortedKeys(filter.Filter) {
		val := filter.Filter[jsonField]

		if field, ok := strings.CutSuffix(jsonField, rangeFromSuffix); ok {
			if dbCol, ok := s.Fields[field]; ok {
				builder = builder.Where(sq.GtOrEq{dbCol: val})
			}
			continue
		}
		if field, ok := strings.CutSuffix(jsonField, rangeToSuffix); ok {
			if dbCol, ok := s.Fields[field]; ok {
				builder = builder.Where(sq.LtOrEq{dbCol: val})
			}
			continue
		}

		dbCol, ok := s.Fields[jsonField]
		if !ok {
			continue
		}
		if str, ok := val.(string); ok && strings.Contains(str, ",") {
			builder = builder.Where(sq.Eq{dbCol: strings.Split(str, ",")})
		} else {
			builder = builder.Where(sq.Eq{dbCol: val})
		}
	}

	if search := strings.TrimSpace(filter.Search); search != "" && len(s.SearchColumns) > 0 {
		like := "%" + search + "%"
		or := make(sq.Or, 0, len(s.SearchColumns))
		for _, col := range s.SearchColumns {
			or = append(or, sq.ILike{col: like})
		}
		builder = builder.Where(or)
	}

	return builder
}

// ApplyOrderAndPage добавляет ORDER BY и, если нужна пагинация, LIMIT/OFFSET.
func (s ListSpec) ApplyOrderAndPage(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	var order []string
	for _, jsonField := range sortedKeys(filter.Sort) {
		dbCol, ok := s.Fields[jsonField]
		if !ok {
			continue
		}
		dir := "ASC"
		if strings.EqualFold(filter.Sort[jsonField], "desc") {
			dir = "DESC"
		}
		order = append(order, dbCol+" "+dir)
	}
	if len(order) == 0 {
		order = append(order, s.DefaultOrder...)
	}
	if s.TieBreaker != "" {
		order = append(order, s.TieBreaker)
	}
	if len(order) > 0 {
		builder = builder.OrderBy(order...)
	}

	if filter.WithPagination {
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
		if filter.Offset > 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}
	return builder
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
