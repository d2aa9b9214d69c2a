package schema

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-harvester/internal/model"
)

func presence(ids ...model.FieldID) *model.PresenceMap {
	pm := model.NewPresenceMap()
	for _, id := range ids {
		pm.Add(id)
	}
	return pm
}

func TestAccumulator_MergePreservesDiscoveryOrder(t *testing.T) {
	acc := NewAccumulator()

	added := acc.Merge(presence("businessName", "phone"))
	assert.Equal(t, []model.FieldID{"businessName", "phone"}, added)

	added = acc.Merge(presence("businessName", "address"))
	assert.Equal(t, []model.FieldID{"address"}, added)

	assert.Equal(t, []model.FieldID{"businessName", "phone", "address"}, acc.Fields())
}

func TestAccumulator_Monotonicity(t *testing.T) {
	acc := NewAccumulator()

	pages := []*model.PresenceMap{
		presence("a", "b", "c"),
		presence("b"),
		presence("d", "a"),
		presence(),
		presence("e", "c", "f"),
	}

	var prev []model.FieldID
	for _, pm := range pages {
		acc.Merge(pm)
		cur := acc.Fields()

		// The set only grows, and previously-inserted fields keep their
		// relative positions.
		require.GreaterOrEqual(t, len(cur), len(prev))
		for i, id := range prev {
			assert.Equal(t, id, cur[i])
		}
		prev = cur
	}

	assert.Equal(t, []model.FieldID{"a", "b", "c", "d", "e", "f"}, acc.Fields())
}

func TestAccumulator_NilAndEmptyPresence(t *testing.T) {
	acc := NewAccumulator()
	assert.Nil(t, acc.Merge(nil))
	assert.Nil(t, acc.Merge(model.NewPresenceMap()))
	assert.Equal(t, 0, acc.Len())
}

func TestAccumulator_ConcurrentMerge(t *testing.T) {
	acc := NewAccumulator()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				acc.Merge(presence(
					model.FieldID(fmt.Sprintf("shared%d", i%10)),
					model.FieldID(fmt.Sprintf("worker%d_%d", w, i)),
				))
			}
		}()
	}
	wg.Wait()

	// 10 shared + 8*50 per-worker fields, no duplicates.
	assert.Equal(t, 10+8*50, acc.Len())

	fields := acc.Fields()
	seen := make(map[model.FieldID]bool, len(fields))
	for _, id := range fields {
		assert.False(t, seen[id], "duplicate field %s", id)
		seen[id] = true
	}
}

func TestAccumulator_SnapshotIsolation(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge(presence("a", "b"))

	snap := acc.Fields()
	snap[0] = "mutated"

	assert.Equal(t, []model.FieldID{"a", "b"}, acc.Fields())
}
