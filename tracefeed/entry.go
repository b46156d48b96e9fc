package tracefeed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Entry is one decoded feed line. Fields absent from an event type are empty.
type Entry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id,omitempty"`
	User      string    `json:"user,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Memo      string    `json:"memo,omitempty"`

	// Regeneration fields
	Requested    string `json:"requested,omitempty"`
	UserShare    string `json:"userShare,omitempty"`
	PledgeShare  string `json:"pledgeShare,omitempty"`
	DAOShare     string `json:"daoShare,omitempty"`
	FounderShare string `json:"founderShare,omitempty"`
	SeedDerived  string `json:"seedDerived,omitempty"`
}

// Read decodes every line of a feed. Blank lines are skipped.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("tracefeed: line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("tracefeed: read: %w", err)
	}
	return entries, nil
}
