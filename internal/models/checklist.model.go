package models

import (
	"encoding/json"
	"strconv"
)

type ChecklistStatus string

const (
	ChecklistStatusPending ChecklistStatus = "pending"
	ChecklistStatusOK      ChecklistStatus = "ok"
	ChecklistStatusNotOK   ChecklistStatus = "not_ok"
)

func (s ChecklistStatus) Valid() bool {
	switch s {
	case ChecklistStatusPending, ChecklistStatusOK, ChecklistStatusNotOK:
		return true
	}
	return false
}

type ChecklistItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	Status    ChecklistStatus `json:"status"`
	Completed bool            `json:"completed"`
}

// ParseChecklist normalizes persisted checklist entries into ChecklistItem.
// Entries written before the tri-state status existed only carry a boolean
// completed flag; completed is always recomputed from status. Input that is
// not a JSON array yields an empty checklist.
func ParseChecklist(raw []byte) []ChecklistItem {
	if len(raw) == 0 {
		return []ChecklistItem{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []ChecklistItem{}
	}

	items := make([]ChecklistItem, 0, len(entries))
	for _, entry := range entries {
		var fields map[string]any
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		items = append(items, NormalizeChecklistItem(fields))
	}
	return items
}

func NormalizeChecklistItem(fields map[string]any) ChecklistItem {
	item := ChecklistItem{
		ID:       stringField(fields["id"]),
		Title:    stringField(fields["title"]),
		Category: stringField(fields["category"]),
		Status:   ChecklistStatusPending,
	}

	status := ChecklistStatus(stringField(fields["status"]))
	switch {
	case status.Valid():
		item.Status = status
	case fields["completed"] == true:
		item.Status = ChecklistStatusOK
	}

	item.Completed = item.Status == ChecklistStatusOK
	return item
}

// EncodeChecklist serializes items in canonical form, completed included so
// that older readers keep working.
func EncodeChecklist(items []ChecklistItem) ([]byte, error) {
	normalized := make([]ChecklistItem, len(items))
	for i, item := range items {
		if !item.Status.Valid() {
			item.Status = ChecklistStatusPending
		}
		item.Completed = item.Status == ChecklistStatusOK
		normalized[i] = item
	}
	return json.Marshal(normalized)
}

func stringField(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
