package dto

// RosterRemovalRequest optionally annotates a roster removal.
type RosterRemovalRequest struct {
	Reason string `json:"reason"`
}

// RosterEntryResponse reports the entry state after a roster mutation.
type RosterEntryResponse struct {
	EntryID   string `json:"entryId"`
	ClassID   string `json:"classId"`
	StudentID string `json:"studentId"`
	IsRemoved bool   `json:"isRemoved"`
}
