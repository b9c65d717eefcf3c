package api

// VirtualCenterItem is the boundary's normalized view of one upstream
// virtual-center record. The raw record travels alongside the normalized
// fields so callers needing upstream-specific data are not cut off.
type VirtualCenterItem struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	FQDN    string         `json:"fqdn,omitempty"`
	Status  string         `json:"status,omitempty"`
	Version string         `json:"version,omitempty"`
	Raw     map[string]any `json:"raw"`
}

type virtualCentersResponse struct {
	Items []VirtualCenterItem `json:"items"`
}

// The upstream never settled on one schema for these records, so each field
// reads from an ordered list of candidate keys and keeps the first string
// value found.
func normalizeVirtualCenters(records []map[string]any) []VirtualCenterItem {
	items := make([]VirtualCenterItem, 0, len(records))
	for _, record := range records {
		items = append(items, VirtualCenterItem{
			ID:      firstString(record, "id", "uuid"),
			Name:    firstString(record, "name", "displayName"),
			FQDN:    firstString(record, "fqdn", "hostname"),
			Status:  firstString(record, "status", "state"),
			Version: firstString(record, "version", "productVersion"),
			Raw:     record,
		})
	}
	return items
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
