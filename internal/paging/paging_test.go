package paging

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

func rowsOf(n int) table.Table {
	rows := make([][]table.Cell, n)
	for i := range rows {
		rows[i] = []table.Cell{strconv.Itoa(i + 1)}
	}
	return table.New([]string{"n"}, rows)
}

func TestPagerFortyFiveRows(t *testing.T) {
	p := New(20)
	p.SetSource(rowsOf(45))

	assert.Equal(t, 3, p.TotalPages())

	p.GoTo(3)
	w := p.Window()
	assert.Equal(t, 3, w.Page)
	assert.Equal(t, 41, w.First)
	assert.Equal(t, 45, w.Last)
	assert.Len(t, w.Rows, 5)
	assert.Equal(t, "41", w.Rows[0][0])

	p.GoTo(4)
	assert.Equal(t, 3, p.Page())
}

func TestPagerClampsAndNavigates(t *testing.T) {
	p := New(0)
	assert.Equal(t, DefaultPageSize, p.PageSize())
	p.SetSource(rowsOf(25))

	p.Prev()
	assert.Equal(t, 1, p.Page())
	p.Next()
	p.Next()
	assert.Equal(t, 2, p.Page())
	p.GoTo(-5)
	assert.Equal(t, 1, p.Page())
}

func TestPagerEmptySource(t *testing.T) {
	p := New(20)
	p.SetSource(table.New(nil, nil))

	w := p.Window()
	assert.Equal(t, 1, w.TotalPages)
	assert.Equal(t, 0, w.First)
	assert.Equal(t, 0, w.Last)
	assert.Empty(t, w.Rows)
}

func TestPagerShowAllResetsPage(t *testing.T) {
	p := New(10)
	p.SetSource(rowsOf(35))
	p.GoTo(3)

	p.SetShowAll(true)
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 1, p.TotalPages())
	w := p.Window()
	assert.Len(t, w.Rows, 35)
	assert.Equal(t, 1, w.First)
	assert.Equal(t, 35, w.Last)
}

func TestPagerNewSourceResetsPage(t *testing.T) {
	p := New(10)
	p.SetSource(rowsOf(50))
	p.GoTo(4)
	p.SetSource(rowsOf(50))
	assert.Equal(t, 1, p.Page())
}

func TestPagerReportedTotal(t *testing.T) {
	p := New(20)
	p.SetSource(rowsOf(10))
	p.SetReportedTotal(1000)

	assert.Equal(t, 1000, p.Window().Total)
	assert.Equal(t, 1, p.TotalPages())

	p.SetReportedTotal(3)
	assert.Equal(t, 10, p.Total())
}
