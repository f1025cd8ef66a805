package reconciler

import "gridbot/internal/grid"

// orderTable maps (level, side) to the broker order id. Empty string means untracked.
type orderTable struct {
	ids [2][]string
}

// trackedOrder is one occupied slot of the table.
type trackedOrder struct {
	Index   int
	Side    grid.Side
	OrderID string
}

func newOrderTable(levels int) *orderTable {
	t := &orderTable{}
	for _, side := range grid.Sides {
		t.ids[side] = make([]string, levels)
	}
	return t
}

func (t *orderTable) inRange(index int, side grid.Side) bool {
	return side.Valid() && index >= 0 && index < len(t.ids[side])
}

func (t *orderTable) set(index int, side grid.Side, id string) {
	if t.inRange(index, side) {
		t.ids[side][index] = id
	}
}

func (t *orderTable) get(index int, side grid.Side) (string, bool) {
	if !t.inRange(index, side) {
		return "", false
	}
	id := t.ids[side][index]
	return id, id != ""
}

func (t *orderTable) remove(index int, side grid.Side) {
	t.set(index, side, "")
}

func (t *orderTable) clear() {
	for _, side := range grid.Sides {
		for i := range t.ids[side] {
			t.ids[side][i] = ""
		}
	}
}

// entries lists occupied slots ascending by level, buy before sell.
func (t *orderTable) entries() []trackedOrder {
	var out []trackedOrder
	if len(t.ids[grid.SideBuy]) == 0 {
		return out
	}
	for i := range t.ids[grid.SideBuy] {
		for _, side := range grid.Sides {
			if id := t.ids[side][i]; id != "" {
				out = append(out, trackedOrder{Index: i, Side: side, OrderID: id})
			}
		}
	}
	return out
}

func (t *orderTable) len() int {
	n := 0
	for _, side := range grid.Sides {
		for _, id := range t.ids[side] {
			if id != "" {
				n++
			}
		}
	}
	return n
}
