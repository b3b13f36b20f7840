package linkmon

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SinceLayout is the minute-precision local timestamp used in the ledger
// file and in outgoing messages.
const SinceLayout = "2006-01-02 15:04"

// Outage is a confirmed, still-open outage for one link.
type Outage struct {
	Since time.Time
}

type outageJSON struct {
	Since string `json:"desde"`
}

// MarshalJSON encodes the outage as {"desde": "YYYY-MM-DD HH:MM"} in local time.
func (o Outage) MarshalJSON() ([]byte, error) {
	return json.Marshal(outageJSON{Since: o.Since.Local().Format(SinceLayout)})
}

// UnmarshalJSON parses {"desde": "YYYY-MM-DD HH:MM"} as local time.
func (o *Outage) UnmarshalJSON(data []byte) error {
	var raw outageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	since, err := time.ParseInLocation(SinceLayout, raw.Since, time.Local)
	if err != nil {
		return fmt.Errorf("parse outage start %q: %w", raw.Since, err)
	}
	o.Since = since
	return nil
}

// SinceText returns the outage start formatted for messages.
func (o Outage) SinceText() string {
	return o.Since.Local().Format(SinceLayout)
}

// Ledger maps unit -> provider -> open outage. The zero value is not
// usable; create one with NewLedger. A Ledger is not safe for concurrent
// use; the Monitor guards its own copy.
type Ledger map[string]map[string]Outage

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return make(Ledger)
}

// Has reports whether an outage is recorded for unit/provider.
func (l Ledger) Has(unit, provider string) bool {
	_, ok := l[unit][provider]
	return ok
}

// Get returns the outage for unit/provider.
func (l Ledger) Get(unit, provider string) (Outage, bool) {
	o, ok := l[unit][provider]
	return o, ok
}

// Put records an outage, creating the unit bucket when needed.
func (l Ledger) Put(unit, provider string, o Outage) {
	bucket, ok := l[unit]
	if !ok {
		bucket = make(map[string]Outage)
		l[unit] = bucket
	}
	bucket[provider] = o
}

// Remove deletes the outage for unit/provider and drops the unit bucket
// once it is empty. It reports whether an entry was removed.
func (l Ledger) Remove(unit, provider string) bool {
	bucket, ok := l[unit]
	if !ok {
		return false
	}
	if _, ok := bucket[provider]; !ok {
		return false
	}
	delete(bucket, provider)
	if len(bucket) == 0 {
		delete(l, unit)
	}
	return true
}

// Len returns the number of open outages.
func (l Ledger) Len() int {
	n := 0
	for _, bucket := range l {
		n += len(bucket)
	}
	return n
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for unit, bucket := range l {
		cp := make(map[string]Outage, len(bucket))
		for provider, o := range bucket {
			cp[provider] = o
		}
		out[unit] = cp
	}
	return out
}

// Entry is one flattened ledger row.
type Entry struct {
	Unit     string
	Provider string
	Outage
}

// Entries returns every outage sorted by unit, then provider.
func (l Ledger) Entries() []Entry {
	entries := make([]Entry, 0, l.Len())
	for unit, bucket := range l {
		for provider, o := range bucket {
			entries = append(entries, Entry{Unit: unit, Provider: provider, Outage: o})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Unit != entries[j].Unit {
			return entries[i].Unit < entries[j].Unit
		}
		return entries[i].Provider < entries[j].Provider
	})
	return entries
}
