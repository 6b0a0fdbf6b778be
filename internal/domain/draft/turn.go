package draft

// RosterSize is the number of castaways each member drafts.
const RosterSize = 2

// Turn returns the 1-based round and the index into the draft order of the
// member who owns the 0-based pickNumber in a snake draft.
func Turn(pickNumber, totalMembers int) (round, pickerIndex int) {
	if totalMembers <= 0 || pickNumber < 0 {
		return 0, -1
	}
	round = pickNumber/totalMembers + 1
	pickInRound := pickNumber % totalMembers
	if round%2 == 1 {
		return round, pickInRound
	}
	return round, totalMembers - 1 - pickInRound
}

// PickerFor resolves the user who owns pickNumber through the draft order.
func PickerFor(order []string, pickNumber int) (string, bool) {
	_, idx := Turn(pickNumber, len(order))
	if idx < 0 {
		return "", false
	}
	return order[idx], true
}

// TotalPicks is the number of picks that completes a draft for memberCount members.
func TotalPicks(memberCount int) int {
	return RosterSize * memberCount
}
