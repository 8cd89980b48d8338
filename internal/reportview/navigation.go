package reportview

// Neighbors scans ids for current and returns its left and right
// neighbors, 0 where there is none.
func Neighbors(ids []int64, current int64) (prev, next int64) {
	for i, id := range ids {
		if id != current {
			continue
		}
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		if i > 0 {
			prev = ids[i-1]
		}
		break
	}
	return prev, next
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
