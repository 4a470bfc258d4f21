package model

// Due is the balance a competing party must deposit before the competition
// can activate. Dues are fixed at escrow instantiation; only the derived
// funded status changes as deposits arrive.
type Due struct {
	Party   Address `json:"party"`
	Balance Balance `json:"balance"`
}

func DueArrayToMap(dues []Due) map[Address]*Due {
	mapped := map[Address]*Due{}
	for i := range dues {
		mapped[dues[i].Party] = &dues[i]
	}
	return mapped
}
