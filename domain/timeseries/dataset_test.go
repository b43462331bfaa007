package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecourse/domain/core"
)

func obs(subject, group string, tt, v float64) Observation {
	return Observation{Value: v, Group: group, Time: tt, Subject: core.SubjectID(subject)}
}

func TestNewDataset_Validation(t *testing.T) {
	_, err := NewDataset(nil)
	require.ErrorIs(t, err, core.ErrEmptyDataset)

	_, err = NewDataset([]Observation{obs("s1", "a", 0, 1)})
	require.ErrorIs(t, err, core.ErrTwoGroupsRequired)

	_, err = NewDataset([]Observation{
		obs("s1", "a", 0, 1), obs("s2", "b", 0, 1), obs("s3", "c", 0, 1),
	})
	require.ErrorIs(t, err, core.ErrTwoGroupsRequired)

	_, err = NewDataset([]Observation{
		obs("s1", "a", 0, 1), obs("s1", "b", 1, 1), obs("s2", "b", 0, 1),
	})
	require.ErrorIs(t, err, core.ErrGroupConflict)
}

func TestDataset_GroupsAndContrast(t *testing.T) {
	ds, err := NewDataset([]Observation{
		obs("s1", "treated", 0, 1), obs("s2", "control", 0, 2),
	})
	require.NoError(t, err)

	g1, g2 := ds.Groups()
	assert.Equal(t, "control", g1)
	assert.Equal(t, "treated", g2)

	c, err := ds.Contrast("control")
	require.NoError(t, err)
	assert.Equal(t, -1.0, c)

	c, err = ds.Contrast("treated")
	require.NoError(t, err)
	assert.Equal(t, 1.0, c)

	_, err = ds.Contrast("other")
	require.Error(t, err)
}

func TestDataset_SubjectBlocks(t *testing.T) {
	ds, err := NewDataset([]Observation{
		obs("s1", "a", 0, 1), obs("s2", "b", 0, 2),
		obs("s1", "a", 1, 3), obs("s2", "b", 1, 4),
		obs("s1", "a", 2, 5),
	})
	require.NoError(t, err)

	blocks := ds.Subjects()
	require.Len(t, blocks, 2)
	assert.Equal(t, core.SubjectID("s1"), blocks[0].Subject)
	assert.Equal(t, 3, blocks[0].Count)
	assert.Equal(t, core.SubjectID("s2"), blocks[1].Subject)
	assert.Equal(t, 2, blocks[1].Count)
}

func TestDataset_TimeGrid(t *testing.T) {
	ds, err := NewDataset([]Observation{
		obs("s1", "a", 2, 1), obs("s2", "b", 6.5, 2),
	})
	require.NoError(t, err)

	grid := ds.TimeGrid()
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, grid)
}

func TestDataset_Relabel(t *testing.T) {
	ds, err := NewDataset([]Observation{
		obs("s1", "a", 0, 1), obs("s2", "b", 0, 2), obs("s1", "a", 1, 3),
	})
	require.NoError(t, err)

	swapped, err := ds.Relabel(map[core.SubjectID]string{"s1": "b", "s2": "a"})
	require.NoError(t, err)

	for _, o := range swapped.Observations() {
		if o.Subject == "s1" {
			assert.Equal(t, "b", o.Group)
		} else {
			assert.Equal(t, "a", o.Group)
		}
	}
	// Base dataset untouched.
	assert.Equal(t, "a", ds.Observations()[0].Group)

	_, err = ds.Relabel(map[core.SubjectID]string{"s1": "b"})
	require.Error(t, err)

	_, err = ds.Relabel(map[core.SubjectID]string{"s1": "b", "s2": "zz"})
	require.Error(t, err)
}
