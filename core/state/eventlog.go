package state

import (
	"sort"

	"bazaar/core/types"
)

type storedAttribute struct {
	Key   string
	Value string
}

type storedEvent struct {
	Sequence   uint64
	Timestamp  uint64
	Type       string
	Attributes []storedAttribute
}

// EventCount returns the sequence number of the newest logged event.
func (m *Manager) EventCount() (uint64, error) {
	return m.loadUint64(EventLogCountKey())
}

// AppendEvent assigns the next sequence number (starting at 1) to evt and
// stores it in the event log.
func (m *Manager) AppendEvent(evt *types.Event, timestamp int64) (types.EventRecord, error) {
	count, err := m.EventCount()
	if err != nil {
		return types.EventRecord{}, err
	}
	seq := count + 1
	record := &storedEvent{Sequence: seq, Timestamp: uint64(timestamp), Type: evt.Type}
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		record.Attributes = append(record.Attributes, storedAttribute{Key: k, Value: evt.Attributes[k]})
	}
	if err := m.KVPut(EventLogKey(seq), record); err != nil {
		return types.EventRecord{}, err
	}
	if err := m.KVPut(EventLogCountKey(), seq); err != nil {
		return types.EventRecord{}, err
	}
	return record.toRecord(), nil
}

// Events returns up to limit logged events with a sequence greater than
// after, oldest first.
func (m *Manager) Events(after uint64, limit int) ([]types.EventRecord, error) {
	count, err := m.EventCount()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	out := make([]types.EventRecord, 0)
	for seq := after + 1; seq <= count && len(out) < limit; seq++ {
		var record storedEvent
		ok, err := m.KVGet(EventLogKey(seq), &record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, record.toRecord())
	}
	return out, nil
}

func (s *storedEvent) toRecord() types.EventRecord {
	attrs := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		attrs[a.Key] = a.Value
	}
	return types.EventRecord{
		Sequence:   s.Sequence,
		Timestamp:  int64(s.Timestamp),
		Type:       s.Type,
		Attributes: attrs,
	}
}
