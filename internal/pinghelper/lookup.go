package pinghelper

import (
	"encoding/json"
	"strings"

	"github.com/goharguide/partnerbot/internal/repository"
)

// lookupEntry points a resolved token at one ping of one subject.
type lookupEntry struct {
	Subject   repository.Subject
	PingIndex int
}

// aliasShape is the decoded form of a subject's legacy alias payload. The
// stored JSON comes in three loose shapes; decoding tags it exactly once at
// load so lookups never branch on container shape.
type aliasShape int

const (
	aliasShapeNone aliasShape = iota
	// aliasShapeNested: list of lists, one alias list per ping.
	aliasShapeNested
	// aliasShapeParallel: flat list with one alias string per ping.
	aliasShapeParallel
	// aliasShapeSinglePing: flat list, all aliases belong to the only ping.
	aliasShapeSinglePing
)

func decodeAliasShape(raw json.RawMessage, pingCount int) (aliasShape, [][]string) {
	if len(raw) == 0 || string(raw) == "null" {
		return aliasShapeNone, nil
	}
	var nested [][]string
	if err := json.Unmarshal(raw, &nested); err == nil {
		return aliasShapeNested, nested
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return aliasShapeNone, nil
	}
	if pingCount == 1 {
		return aliasShapeSinglePing, [][]string{flat}
	}
	perPing := make([][]string, 0, len(flat))
	for _, alias := range flat {
		perPing = append(perPing, []string{alias})
	}
	return aliasShapeParallel, perPing
}

// buildLookupTable flattens every subject's ping values, display names and
// normalized aliases into one token -> (subject, ping index) table.
func buildLookupTable(subjects []repository.Subject) map[string]lookupEntry {
	table := make(map[string]lookupEntry)
	put := func(token string, entry lookupEntry) {
		key := strings.ToLower(strings.TrimSpace(token))
		if key == "" {
			return
		}
		if _, exists := table[key]; !exists {
			table[key] = entry
		}
		norm := normalizeToken(key)
		if norm != "" && norm != key {
			if _, exists := table[norm]; !exists {
				table[norm] = entry
			}
		}
	}
	for _, subject := range subjects {
		_, aliasesByPing := decodeAliasShape(subject.RawAliases, len(subject.Pings))
		for i, ping := range subject.Pings {
			entry := lookupEntry{Subject: subject, PingIndex: i}
			put(ping.Value, entry)
			put(ping.Name, entry)
			if i < len(aliasesByPing) {
				for _, alias := range aliasesByPing[i] {
					put(alias, entry)
				}
			}
		}
	}
	return table
}

func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
