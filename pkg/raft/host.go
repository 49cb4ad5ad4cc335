package raft

// Host is the callback surface an embedding application implements to
// supply transport, durability, and application delivery. All callbacks
// are assumed synchronous and non-suspending from the core's point of
// view: WriteLogEntry must not return before the entry is durable;
// SendMessage returns immediately with a best-effort acceptance flag.
//
// The host is responsible for serializing Tick/Run/Propose/Recover/Start/
// Stop/Snapshot calls into a given Instance; the core itself holds no
// internal lock.
type Host interface {
	// SendMessage attempts best-effort delivery of msg to dest. The
	// returned bool indicates whether the transport accepted it; false
	// tells the core to stop replicating to dest this round.
	SendMessage(dest NodeID, msg Message) bool

	// GetLogEntry supplies a historical entry covering the half-open
	// range (startIndex, endIndex] at the given term, for replication
	// catch-up. ok=false means nothing is available yet. The host may
	// return a summary entry (Term == nil) for a compacted range.
	GetLogEntry(term Term, startIndex, endIndex Index) (entry LogEntry, ok bool)

	// WriteLogEntry durably persists entry before returning.
	WriteLogEntry(entry LogEntry)

	// CommitLogEntry delivers a committed entry for application. Called
	// in strict increasing Index order, exactly once per entry.
	CommitLogEntry(entry LogEntry)

	// LeaderChange notifies the host that the believed leader changed.
	// The empty NodeID means "no leader known".
	LeaderChange(leader NodeID)

	// ConfigChange notifies the host that the active configuration
	// changed.
	ConfigChange(config Configuration)
}
