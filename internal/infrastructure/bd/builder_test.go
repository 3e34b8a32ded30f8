package db

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crf-system/pkg/types"
)

var testSpec = ListSpec{
	Fields: map[string]string{
		"status":     "c.status",
		"created_at": "c.created_at",
	},
	SearchColumns: []string{"c.crf_number", "c.issue"},
	DefaultOrder:  []string{"c.created_at DESC"},
	TieBreaker:    "c.id DESC",
}

func baseSelect() sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Select("c.id").From("crfs c")
}

func TestListSpec_FiltersAndSearch(t *testing.T) {
	filter := types.Filter{
		Search: " printer ",
		Filter: map[string]interface{}{
			"status":          "4,6",
			"created_at_from": "2026-01-01",
			"password":        "ignored",
		},
	}

	query, args, err := testSpec.ApplyFilters(baseSelect(), filter).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT c.id FROM crfs c WHERE c.created_at >= $1 AND c.status IN ($2,$3) AND (c.crf_number ILIKE $4 OR c.issue ILIKE $5)",
		query)
	assert.Equal(t, []interface{}{"2026-01-01", "4", "6", "%printer%", "%printer%"}, args)
}

func TestListSpec_DefaultOrderAndPage(t *testing.T) {
	filter := types.Filter{WithPagination: true, Limit: 20, Offset: 40}

	query, _, err := testSpec.ApplyOrderAndPage(baseSelect(), filter).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT c.id FROM crfs c ORDER BY c.created_at DESC, c.id DESC LIMIT 20 OFFSET 40", query)
}

func TestListSpec_ClientSortWithoutPagination(t *testing.T) {
	filter := types.Filter{
		Sort:  map[string]string{"status": "asc", "unknown": "desc"},
		Limit: 20,
	}

	query, _, err := testSpec.ApplyOrderAndPage(baseSelect(), filter).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT c.id FROM crfs c ORDER BY c.status ASC, c.id DESC", query)
}
