package domain

import (
	"testing"
	"time"
)

func TestSortActivitiesNewestFirst(t *testing.T) {
	may := time.Date(2024, time.May, 1, 18, 0, 0, 0, time.UTC)
	items := []Activity{
		{ID: "undated"},
		{ID: "april", Date: may.AddDate(0, -1, 0)},
		{ID: "may-b", Date: may},
		{ID: "may-a", Date: may},
	}

	SortActivitiesNewestFirst(items)

	want := []string{"may-a", "may-b", "april", "undated"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}
