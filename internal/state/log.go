package state

// Log is an append-only list of entries. Append never writes into storage
// visible through an earlier Log value, so copies of AgentState taken before
// an append keep their own history.
type Log []string

// Append returns a log with entries added after the existing ones.
func (l Log) Append(entries ...string) Log {
	if len(entries) == 0 {
		return l
	}
	out := make(Log, len(l), len(l)+len(entries))
	copy(out, l)
	return append(out, entries...)
}

// Merge concatenates other after l.
func (l Log) Merge(other Log) Log {
	return l.Append(other...)
}

// Len reports the number of entries.
func (l Log) Len() int { return len(l) }

// Entries returns a copy of the entries.
func (l Log) Entries() []string {
	out := make([]string, len(l))
	copy(out, l)
	return out
}
