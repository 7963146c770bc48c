package common

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	p, err := ParsePage(url.Values{}, 20, 100)
	require.NoError(t, err)
	require.Equal(t, PageRequest{Page: 1, Limit: 20}, p)
	require.Zero(t, p.Offset())

	p, err = ParsePage(url.Values{"page": {"3"}, "limit": {"500"}}, 20, 100)
	require.NoError(t, err)
	require.Equal(t, 100, p.Limit)
	require.Equal(t, 200, p.Offset())

	for _, q := range []url.Values{{"page": {"0"}}, {"limit": {"ten"}}} {
		_, err = ParsePage(q, 20, 100)
		var appErr *AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	}
}

func TestPaginate(t *testing.T) {
	items, meta := Paginate([]string{"a", "b", "c"}, PageRequest{Page: 2, Limit: 2})
	require.Equal(t, []string{"a", "b"}, items)
	require.Equal(t, Pagination{Page: 2, PerPage: 2, Count: 2, HasMore: true}, meta)

	items, meta = Paginate([]string{"a"}, PageRequest{Page: 1, Limit: 2})
	require.Equal(t, []string{"a"}, items)
	require.False(t, meta.HasMore)
}
