package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGrid(t *testing.T) {
	g := BuildGrid([]HeatmapCell{
		{Day: 1, Hour: 9, Value: 4.5},  // Monday
		{Day: 7, Hour: 23, Value: 0.5}, // Sunday
		{Day: 6, Hour: 0, Value: 2},    // Saturday
		{Day: 0, Hour: 3, Value: 99},   // out of range
		{Day: 3, Hour: 24, Value: -5},  // out of range
	})

	assert.Equal(t, "Monday", DayNames[1])
	assert.Equal(t, 4.5, g.Values[1][9])
	assert.True(t, g.Present[1][9])
	assert.Equal(t, 0.5, g.Values[0][23])
	assert.Equal(t, 2.0, g.Values[6][0])
	assert.False(t, g.Present[3][0])

	assert.Equal(t, 0.5, g.Min)
	assert.Equal(t, 4.5, g.Max)
}

func TestBuildGridEmpty(t *testing.T) {
	g := BuildGrid(nil)
	assert.Equal(t, 0.0, g.Min)
	assert.Equal(t, 1.0, g.Max)
}

func TestGridLevel(t *testing.T) {
	g := Grid{Min: 0, Max: 10}
	assert.Equal(t, 0, g.Level(0, 5))
	assert.Equal(t, 2, g.Level(5, 5))
	assert.Equal(t, 4, g.Level(10, 5))
	assert.Equal(t, 4, g.Level(50, 5))
	assert.Equal(t, 0, g.Level(-3, 5))

	flat := Grid{Min: 3, Max: 3}
	assert.Equal(t, 0, flat.Level(3, 5))
}

func TestWeekRange(t *testing.T) {
	wed := time.Date(2024, 5, 8, 15, 0, 0, 0, time.UTC)
	start, end := WeekRange(wed)
	assert.Equal(t, "2024-05-05", start)
	assert.Equal(t, "2024-05-11", end)

	sun := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	start, _ = WeekRange(sun)
	assert.Equal(t, "2024-05-05", start)
}

func TestSortFacultyInfo(t *testing.T) {
	rows := []FacultyInfo{
		{Faculty: "STEI", Energy: 300, Cost: 10},
		{Faculty: "FTI", Energy: 100, Cost: 30},
		{Faculty: "FMIPA", Energy: 300, Cost: 20},
		{Faculty: "SAPPK", Energy: 200, Cost: 40},
	}

	tests := []struct {
		field string
		desc  bool
		want  []string
	}{
		{field: "energy", want: []string{"FTI", "SAPPK", "STEI", "FMIPA"}},
		{field: "energy", desc: true, want: []string{"STEI", "FMIPA", "SAPPK", "FTI"}},
		{field: "cost", want: []string{"STEI", "FMIPA", "FTI", "SAPPK"}},
		{field: "faculty", want: []string{"FMIPA", "FTI", "SAPPK", "STEI"}},
		{field: "faculty", desc: true, want: []string{"STEI", "SAPPK", "FTI", "FMIPA"}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := SortFacultyInfo(rows, tt.field, tt.desc)
			require.NoError(t, err)
			names := make([]string, len(got))
			for i, r := range got {
				names[i] = r.Faculty
			}
			assert.Equal(t, tt.want, names)
		})
	}

	assert.Equal(t, "STEI", rows[0].Faculty, "input must not be reordered")

	_, err := SortFacultyInfo(rows, "budget", false)
	assert.ErrorContains(t, err, "unknown sort field")
}

func TestTopByEnergy(t *testing.T) {
	values := []FacultyUsage{
		{Fakultas: "A", Energy: 1},
		{Fakultas: "B", Energy: 3},
		{Fakultas: "C", Energy: 2},
	}
	top := TopByEnergy(values, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "B", top[0].Fakultas)
	assert.Equal(t, "C", top[1].Fakultas)
	assert.Len(t, TopByEnergy(values, 10), 3)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in       float64
		decimals int
		want     string
	}{
		{1234567.891, 2, "1,234,567.89"},
		{-1234567.891, 2, "1,234,567.89"},
		{0, 2, "0.00"},
		{999, 0, "999"},
		{1000, 0, "1,000"},
		{123456, 1, "123,456.0"},
		{1234.5, 0, "1,235"},
		{12.3456, 3, "12.346"},
		{100000000, -1, "100,000,000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in, tt.decimals), "FormatNumber(%v, %d)", tt.in, tt.decimals)
	}
}

func TestRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var failures atomic.Int32
	done := make(chan struct{})

	go func() {
		defer close(done)
		Refresh(ctx, 10*time.Millisecond, func(context.Context) error {
			if calls.Add(1) == 2 {
				return errors.New("temporary")
			}
			return nil
		}, func(error) { failures.Add(1) })
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not stop")
	}
	assert.Equal(t, int32(1), failures.Load())
}

func TestRefreshOnce(t *testing.T) {
	calls := 0
	Refresh(context.Background(), 0, func(context.Context) error {
		calls++
		return nil
	}, nil)
	assert.Equal(t, 1, calls)
}
