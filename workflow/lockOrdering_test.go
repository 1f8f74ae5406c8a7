package workflow

import (
	"sort"
	"testing"

	"bitbucket.org/mmdatafocus/costing_backend/models"
)

// Posting locks must be taken in the same order by every writer, so the
// helpers that feed the lock loops have to return ascending product ids no
// matter how Go happens to order the map.
func TestProductIdsOfReturnsAscendingIds(t *testing.T) {
	products := map[int]*models.Product{
		42: {}, 7: {}, 19: {}, 3: {}, 88: {}, 55: {},
	}
	for i := 0; i < 20; i++ {
		ids := productIdsOf(products)
		if len(ids) != len(products) {
			t.Fatalf("got %d ids, want %d", len(ids), len(products))
		}
		if !sort.IntsAreSorted(ids) {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
}

func TestSortedIdSetReturnsAscendingIds(t *testing.T) {
	set := map[int]struct{}{
		31: {}, 2: {}, 17: {}, 99: {}, 5: {},
	}
	for i := 0; i < 20; i++ {
		ids := sortedIdSet(set)
		if len(ids) != len(set) {
			t.Fatalf("got %d ids, want %d", len(ids), len(set))
		}
		if !sort.IntsAreSorted(ids) {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
}
