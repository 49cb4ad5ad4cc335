package raft

import (
	"sort"

	"github.com/rs/zerolog"
)

const defaultElectionTimeoutMillis = 1000

// Instance is one participant in a Raft group. It is not safe for
// concurrent use: the embedding Host must serialize all calls into a
// given Instance (see SPEC_FULL.md §5).
type Instance struct {
	id   NodeID
	host Host
	log  zerolog.Logger

	electionTimeout Time

	started bool
	stopped bool

	// persistent (recoverable from replayed entries, §3)
	term               Term
	vote               NodeID
	leader             NodeID
	dataCommitted      Index
	configCommitted    Index
	lastLogTerm        Term
	lastIndex          Index
	lastCommittedTerm  Term
	lastCommittedIndex Index
	config             Configuration
	pendingConfig      *Configuration
	waitingCommits     []LogEntry

	// volatile
	peers            map[NodeID]*peerState
	otherNodes       []NodeID
	otherConfigNodes []NodeID
	replicaTargets   []NodeID

	rng                   *jitterSource
	electionDeadline      Time
	lastHeartbeatReceived Time
	lastHeartbeatSent     Time
	seenTermActivity      bool
	votesGrantedThisTerm  map[NodeID]bool
}

// NewInstance constructs an Instance identified by id. Recover should be
// called zero or more times before Start.
func NewInstance(id NodeID, host Host, logger zerolog.Logger) *Instance {
	return &Instance{
		id:                   id,
		host:                 host,
		log:                  logger.With().Str("node", string(id)).Logger(),
		electionTimeout:      defaultElectionTimeoutMillis,
		peers:                make(map[NodeID]*peerState),
		votesGrantedThisTerm: make(map[NodeID]bool),
	}
}

// SetElectionTimeout configures the base timeout; the effective timeout
// sampled on each election attempt is in [base, 2*base).
func (in *Instance) SetElectionTimeout(base Time) {
	precondition(base > 0, "election timeout must be positive, got %d", base)
	in.electionTimeout = base
}

func (in *Instance) ID() NodeID       { return in.id }
func (in *Instance) Term() Term       { return in.term }
func (in *Instance) Leader() NodeID   { return in.leader }
func (in *Instance) IsLeader() bool   { return in.leader == in.id }
func (in *Instance) DataCommitted() Index   { return in.dataCommitted }
func (in *Instance) ConfigCommitted() Index { return in.configCommitted }
func (in *Instance) Config() Configuration  { return in.config }

func (in *Instance) peer(id NodeID) *peerState {
	p, ok := in.peers[id]
	if !ok {
		p = &peerState{}
		in.peers[id] = p
	}
	return p
}

// recomputeDerivedSets rebuilds otherNodes/otherConfigNodes/replicaTargets
// from the active and pending configurations, per §3's volatile state.
func (in *Instance) recomputeDerivedSets() {
	in.otherNodes = in.config.votersExcept(in.id)

	seenConfig := map[NodeID]bool{}
	joint := make([]NodeID, 0, len(in.config.Nodes))
	for _, n := range in.config.Nodes {
		if n != in.id && !seenConfig[n] {
			seenConfig[n] = true
			joint = append(joint, n)
		}
	}
	if in.pendingConfig != nil {
		for _, n := range in.pendingConfig.Nodes {
			if n != in.id && !seenConfig[n] {
				seenConfig[n] = true
				joint = append(joint, n)
			}
		}
	}
	in.otherConfigNodes = joint

	seenReplica := map[NodeID]bool{}
	replicas := make([]NodeID, 0, len(joint))
	for _, n := range joint {
		if !seenReplica[n] {
			seenReplica[n] = true
			replicas = append(replicas, n)
		}
	}
	for _, n := range in.config.Replicas {
		if n != in.id && !seenReplica[n] {
			seenReplica[n] = true
			replicas = append(replicas, n)
		}
	}
	if in.pendingConfig != nil {
		for _, n := range in.pendingConfig.Replicas {
			if n != in.id && !seenReplica[n] {
				seenReplica[n] = true
				replicas = append(replicas, n)
			}
		}
	}
	in.replicaTargets = replicas
}

// ---- recovery & startup (§4.6) ----

// Recover applies one previously-written entry during replay. Must be
// called before Start.
func (in *Instance) Recover(entry LogEntry) {
	precondition(!in.started, "Recover called after Start")

	if entry.IsMetadataOnly() {
		if entry.Config != nil && entry.Term == nil {
			// Bare config entry with no term: bootstraps the initial
			// configuration (first-run case).
			in.config = *entry.Config
			in.recomputeDerivedSets()
			return
		}
		if t := entry.termOr(in.term); t >= in.term {
			in.term = t
			if entry.Leader != nil {
				in.leader = *entry.Leader
			}
			if entry.Vote != nil {
				in.vote = *entry.Vote
			}
			if entry.DataCommitted > in.dataCommitted {
				in.dataCommitted = entry.DataCommitted
			}
			if entry.ConfigCommitted > in.configCommitted {
				in.configCommitted = entry.ConfigCommitted
			}
			if entry.Config != nil {
				in.config = *entry.Config
				in.recomputeDerivedSets()
			}
		}
		return
	}

	in.acceptEntry(entry, true)
	in.deliverCommits()
}

// Start enters live operation after any Recover calls. now seeds the
// election clock; seed seeds the jitter RNG.
func (in *Instance) Start(now Time, seed int64) {
	precondition(!in.started, "Start called twice")
	in.started = true
	in.rng = newJitterSource(seed)
	in.recomputeDerivedSets()
	in.lastHeartbeatReceived = now
	in.lastHeartbeatSent = now

	// A config that changed while this node was down can imply a
	// different leader than the one it recovered; re-entering under the
	// stale term would let that stale leader linger, so bump into a
	// fresh term exactly as activateConfigIfReady does on a live change.
	if in.recomputeLeaderOnConfigChange() {
		in.term++
		in.vote = ""
		in.seenTermActivity = false
		in.writeMetadata()
		in.log.Debug().Uint64("term", uint64(in.term)).Msg("config-implied leader changed on recovery, bumping term")
	}

	in.rollElectionDeadline(now)

	in.host.ConfigChange(in.config)
	in.host.LeaderChange(in.leader)
}

// Stop attempts an orderly hand-off (abdication, §4.7) if this instance
// is currently leader.
func (in *Instance) Stop() {
	if in.stopped {
		return
	}
	in.stopped = true
	if !in.IsLeader() || len(in.otherNodes) == 0 {
		return
	}
	in.abdicate()
}

func (in *Instance) rollElectionDeadline(now Time) {
	jitter := Time(in.rng.next(int64(in.electionTimeout)))
	in.electionDeadline = now + in.electionTimeout + jitter
}

// ---- tick (§4.1) ----

// Tick advances the clock. Call at a frequency at least electionTimeout/10.
func (in *Instance) Tick(now Time) {
	precondition(in.started, "Tick called before Start")
	if in.stopped {
		return
	}

	if in.IsLeader() {
		if now-in.lastHeartbeatSent >= in.electionTimeout/4 {
			in.heartbeat(now)
		}
		return
	}

	if len(in.config.Nodes) == 0 || !in.config.HasNode(in.id) || len(in.otherNodes) == 0 {
		return
	}
	if now >= in.electionDeadline {
		in.startElection(now)
	}
}

// ---- election (§4.1) ----

func (in *Instance) startElection(now Time) {
	alreadyCandidate := in.vote == in.id
	if alreadyCandidate && !in.seenTermActivity {
		// Retry path: re-broadcast without bumping the term.
		in.broadcastVoteRequest()
		in.rollElectionDeadline(now)
		return
	}

	in.waitingCommits = nil
	in.term++
	in.vote = in.id
	in.leader = ""
	in.seenTermActivity = false
	in.votesGrantedThisTerm = map[NodeID]bool{in.id: true}

	in.log.Debug().Uint64("term", uint64(in.term)).Msg("starting election")
	in.writeMetadata()
	in.host.LeaderChange("")
	in.rollElectionDeadline(now)
	in.broadcastVoteRequest()
}

func (in *Instance) broadcastVoteRequest() {
	self := in.id
	msg := Message{
		From:            in.id,
		Term:            in.term,
		LastLogTerm:     in.lastLogTerm,
		LastLogIndex:    in.lastIndex,
		Leader:          in.leader,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
		Vote:            &self,
	}
	for _, dest := range in.otherConfigNodes {
		in.host.SendMessage(dest, msg)
	}
}

func (in *Instance) handleVoteRequest(now Time, from NodeID, msg Message) {
	p := in.peer(from)
	p.term = msg.Term
	p.lastLogTerm = msg.LastLogTerm
	p.lastLogIndex = msg.LastLogIndex
	p.vote = *msg.Vote
	p.ackReceived = int64(now)

	if in.vote != "" && in.vote != from {
		return
	}
	candidateUpToDate := msg.LastLogTerm > in.lastLogTerm ||
		(msg.LastLogTerm == in.lastLogTerm && msg.LastLogIndex >= in.lastIndex)
	if !candidateUpToDate {
		return
	}

	in.vote = from
	in.writeMetadata()
	in.rollElectionDeadline(now)

	candidate := from
	reply := Message{
		From:            in.id,
		Term:            in.term,
		LastLogTerm:     in.lastLogTerm,
		LastLogIndex:    in.lastIndex,
		Leader:          in.leader,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
		Vote:            &candidate,
	}
	in.host.SendMessage(from, reply)
}

func (in *Instance) handleVoteGrant(now Time, from NodeID, msg Message) {
	p := in.peer(from)
	p.term = msg.Term
	p.vote = *msg.Vote
	p.ackReceived = int64(now)

	if in.vote != in.id || *msg.Vote != in.id {
		if *msg.Vote == in.id && in.vote == "" {
			// An unsolicited grant naming us while we never ran: take it
			// as an abdication handoff and start our own candidacy.
			in.startElection(now)
		}
		return
	}

	in.votesGrantedThisTerm[from] = true
	granted := 0
	for _, n := range in.otherConfigNodes {
		if pp, ok := in.peers[n]; ok && pp.term == in.term && pp.vote == in.id {
			granted++
		}
	}
	if granted+1 <= (len(in.otherConfigNodes)+1)/2 {
		return
	}

	in.leader = in.id
	in.log.Info().Uint64("term", uint64(in.term)).Msg("elected leader")
	in.writeMetadata()
	in.host.LeaderChange(in.leader)
	for _, n := range in.otherNodes {
		in.peer(n).sentTerm = 0
		in.peer(n).sentIndex = in.lastCommittedIndex
	}
	for _, n := range in.otherConfigNodes {
		if in.peer(n).sentTerm == 0 {
			in.peer(n).sentIndex = in.lastCommittedIndex
		}
	}
	in.heartbeat(now)
}

// ---- term transitions (§4.1) ----

func (in *Instance) adoptHigherTerm(now Time, msg Message) {
	in.log.Debug().Uint64("from_term", uint64(in.term)).Uint64("to_term", uint64(msg.Term)).Str("leader", string(msg.Leader)).Msg("adopting higher term")
	in.term = msg.Term
	in.leader = msg.Leader
	in.vote = ""
	in.waitingCommits = nil
	in.seenTermActivity = true
	in.writeMetadata()
	in.host.LeaderChange(in.leader)
	in.rollElectionDeadline(now)
}

// ---- inbound message dispatch ----

// Run processes one inbound message.
func (in *Instance) Run(now Time, msg Message) {
	precondition(in.started, "Run called before Start")
	if in.stopped {
		return
	}

	if msg.Term < in.term {
		return
	}
	// Any traffic at or above our term means the term is live; this must
	// be set regardless of sender so a same-term split vote escalates via
	// a fresh term instead of retrying the same one forever.
	in.seenTermActivity = true
	if msg.Term > in.term {
		in.adoptHigherTerm(now, msg)
	} else if msg.From == in.leader || (in.leader == "" && msg.Leader != "" && msg.Leader == msg.From) {
		in.leader = msg.Leader
		in.lastHeartbeatReceived = now
		in.rollElectionDeadline(now)

		advanced := false
		if msg.DataCommitted > in.dataCommitted {
			in.dataCommitted = msg.DataCommitted
			advanced = true
		}
		if msg.ConfigCommitted > in.configCommitted {
			in.configCommitted = msg.ConfigCommitted
			advanced = true
		}
		if advanced {
			in.writeMetadata()
			in.deliverCommits()
		}
	}

	switch msg.Kind() {
	case KindVoteRequest:
		in.handleVoteRequest(now, msg.From, msg)
	case KindVoteGrant:
		in.handleVoteGrant(now, msg.From, msg)
	case KindAppend:
		in.handleAppend(now, msg)
	default:
		in.handleAck(now, msg)
	}
}

func (in *Instance) handleAppend(now Time, msg Message) {
	entry := *msg.Entry
	accepted := in.acceptEntry(entry, false)

	p := in.peer(msg.From)
	p.ackReceived = int64(now)

	reply := Message{
		From:            in.id,
		Term:            in.term,
		Leader:          in.leader,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
	}
	if !accepted {
		reply.Nack = true
		reply.LastLogTerm = in.lastCommittedTerm
		reply.LastLogIndex = in.lastCommittedIndex
		in.lastLogTerm = in.lastCommittedTerm
		in.lastIndex = in.lastCommittedIndex
	} else {
		reply.LastLogTerm = in.lastLogTerm
		reply.LastLogIndex = in.lastIndex
	}
	in.host.SendMessage(msg.From, reply)
	in.deliverCommits()
}

func (in *Instance) handleAck(now Time, msg Message) {
	p := in.peer(msg.From)
	p.term = msg.Term
	p.ackReceived = int64(now)

	if msg.Nack {
		p.sentTerm = 0
		p.sentIndex = msg.LastLogIndex
		p.lastLogTerm = msg.LastLogTerm
		p.lastLogIndex = msg.LastLogIndex
		return
	}
	p.lastLogTerm = msg.LastLogTerm
	p.lastLogIndex = msg.LastLogIndex

	if !in.IsLeader() {
		return
	}
	acked := 0
	for _, n := range in.otherNodes {
		if pp, ok := in.peers[n]; ok && pp.ackReceived >= int64(in.lastHeartbeatSent) {
			acked++
		}
	}
	if acked+1 > (len(in.otherNodes)+1)/2 || len(in.otherNodes) == 0 {
		in.lastHeartbeatReceived = now
	}
	in.updateCommitted(now)
	in.replicateAll(now)
}

// ---- accepting entries (§4.2) ----

// acceptEntry applies the log-matching check and, on success, appends the
// entry to local state. recovering suppresses the immediate-commit
// shortcut (commit delivery during recovery runs explicitly afterward).
func (in *Instance) acceptEntry(entry LogEntry, recovering bool) bool {
	if entry.Config != nil {
		cfg := *entry.Config
		in.pendingConfig = &cfg
		// A pending (uncommitted) config is already part of joint
		// consensus: replication and vote-quorum counting must include
		// its members immediately, not just once it commits.
		in.recomputeDerivedSets()
	}

	if entry.IsMetadataOnly() {
		return true
	}

	if entry.Index <= in.lastIndex && entry.termOr(in.term) <= in.lastLogTerm {
		return true // duplicate, accepted as no-op
	}

	if entry.IsSummary() {
		entry.Term = termPtr(in.term)
		entry.PreviousLogTerm = in.lastLogTerm
		entry.PreviousLogIndex = in.lastIndex
		in.lastIndex = entry.Index - 1
	}

	if entry.PreviousLogTerm != in.lastLogTerm || entry.PreviousLogIndex != in.lastIndex {
		return false
	}
	if in.lastLogTerm == *entry.Term && entry.Index != in.lastIndex+1 {
		return false
	}

	in.lastLogTerm = *entry.Term
	in.lastIndex = entry.Index + entry.Extent

	if !recovering && in.IsLeader() && len(in.otherNodes) == 0 {
		in.dataCommitted = in.lastIndex
		if in.pendingConfig == nil || len(in.otherConfigNodes) == 0 {
			in.configCommitted = in.lastIndex
		}
	}

	entry.DataCommitted = in.dataCommitted
	entry.ConfigCommitted = in.configCommitted
	in.host.WriteLogEntry(entry)
	in.waitingCommits = append(in.waitingCommits, entry)
	return true
}

// ---- replication (leader side, §4.3) ----

// heartbeat drives one replication round and, since entries alone do not
// prove liveness to a follower that is already fully caught up, always
// also sends a content-less status message to every replica.
func (in *Instance) heartbeat(now Time) {
	in.lastHeartbeatSent = now
	in.replicateAll(now)
	msg := Message{
		From:            in.id,
		Term:            in.term,
		LastLogTerm:     in.lastLogTerm,
		LastLogIndex:    in.lastIndex,
		Leader:          in.leader,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
	}
	for _, n := range in.replicaTargets {
		in.host.SendMessage(n, msg)
	}
}

func (in *Instance) replicateAll(now Time) {
	if !in.IsLeader() {
		return
	}
	for _, n := range in.replicaTargets {
		in.replicateTo(now, n)
	}
}

func (in *Instance) replicateTo(now Time, dest NodeID) {
	p := in.peer(dest)
	if p.term != in.term {
		return
	}

	end := in.lastIndex
	if len(in.waitingCommits) > 0 {
		if first := in.waitingCommits[0].Index; first-1 < end {
			end = first - 1
		}
	}

	for p.sentIndex < end {
		entry, ok := in.host.GetLogEntry(in.term, p.sentIndex, end)
		if !ok {
			break
		}
		if entry.Term == nil {
			entry.Term = termPtr(in.term)
		}
		entry.PreviousLogTerm = p.lastLogTerm
		entry.PreviousLogIndex = p.sentIndex
		msg := Message{
			From:            in.id,
			Term:            in.term,
			LastLogTerm:     in.lastLogTerm,
			LastLogIndex:    in.lastIndex,
			Leader:          in.leader,
			DataCommitted:   in.dataCommitted,
			ConfigCommitted: in.configCommitted,
			Entry:           &entry,
		}
		if !in.host.SendMessage(dest, msg) {
			return
		}
		p.sentTerm = in.term
		p.sentIndex = entry.Index + entry.Extent
	}

	for _, entry := range in.waitingCommits {
		if entry.Index <= p.sentIndex {
			continue
		}
		e := entry
		e.PreviousLogTerm = p.lastLogTerm
		e.PreviousLogIndex = p.sentIndex
		msg := Message{
			From:            in.id,
			Term:            in.term,
			LastLogTerm:     in.lastLogTerm,
			LastLogIndex:    in.lastIndex,
			Leader:          in.leader,
			DataCommitted:   in.dataCommitted,
			ConfigCommitted: in.configCommitted,
			Entry:           &e,
		}
		if !in.host.SendMessage(dest, msg) {
			return
		}
		p.sentTerm = in.term
		p.sentIndex = e.Index + e.Extent
	}
}

// ---- commit & configuration activation (§4.4) ----

func median(values []Index) Index {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]Index(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}

func (in *Instance) updateCommitted(now Time) {
	if !in.IsLeader() {
		return
	}

	values := make([]Index, 0, len(in.otherNodes)+1)
	values = append(values, in.lastIndex)
	for _, n := range in.otherNodes {
		if p, ok := in.peers[n]; ok {
			values = append(values, p.lastLogIndex)
		} else {
			values = append(values, 0)
		}
	}
	dataMedian := median(values)
	if dataMedian > in.dataCommitted {
		in.dataCommitted = dataMedian
		in.writeMetadata()
		in.deliverCommits()
		in.heartbeat(now)
	}

	if in.pendingConfig == nil {
		return
	}
	cfgValues := make([]Index, 0, len(in.otherConfigNodes)+1)
	cfgValues = append(cfgValues, in.lastIndex)
	for _, n := range in.otherConfigNodes {
		if p, ok := in.peers[n]; ok {
			cfgValues = append(cfgValues, p.lastLogIndex)
		} else {
			cfgValues = append(cfgValues, 0)
		}
	}
	cfgMedian := median(cfgValues)
	if cfgMedian == dataMedian && cfgMedian > in.configCommitted {
		in.configCommitted = cfgMedian
		in.writeMetadata()
		in.deliverCommits()
		in.heartbeat(now)
	}
}

func (in *Instance) deliverCommits() {
	for len(in.waitingCommits) > 0 && in.waitingCommits[0].Index <= in.dataCommitted {
		entry := in.waitingCommits[0]
		in.waitingCommits = in.waitingCommits[1:]
		if entry.Index <= in.lastCommittedIndex {
			continue // superseded by a later summary, discard without delivering
		}
		in.host.CommitLogEntry(entry)
		in.lastCommittedIndex = entry.Index
		in.lastCommittedTerm = entry.termOr(in.lastCommittedTerm)
	}
	in.activateConfigIfReady()
}

func (in *Instance) activateConfigIfReady() {
	if in.pendingConfig == nil {
		return
	}
	pc := in.pendingConfig
	if pc.Term != in.term || pc.Index > in.configCommitted {
		return
	}

	in.config = *pc
	in.pendingConfig = nil
	in.recomputeDerivedSets()
	in.log.Info().Str("config", in.config.String()).Msg("activated configuration")
	in.host.ConfigChange(in.config)

	leaderChanged := in.recomputeLeaderOnConfigChange()
	in.term++
	in.vote = ""
	in.seenTermActivity = false
	in.writeMetadata()
	if leaderChanged {
		in.host.LeaderChange(in.leader)
	}

	if !in.config.HasNode(in.id) {
		in.Stop()
	}
}

func (in *Instance) recomputeLeaderOnConfigChange() bool {
	before := in.leader
	switch {
	case len(in.otherNodes) == 0:
		in.leader = in.id
	case !in.config.HasNode(in.id) && len(in.otherNodes) == 1:
		in.leader = in.otherNodes[0]
	case in.leader == in.id && !in.config.HasNode(in.id):
		in.leader = ""
	}
	return before != in.leader
}

// ---- abdication (§4.7) ----

func (in *Instance) abdicate() {
	var best NodeID
	var bestTerm Term
	var bestIndex Index
	for _, n := range in.otherNodes {
		p, ok := in.peers[n]
		if !ok {
			continue
		}
		if best == "" || p.lastLogTerm > bestTerm || (p.lastLogTerm == bestTerm && p.lastLogIndex > bestIndex) {
			best = n
			bestTerm = p.lastLogTerm
			bestIndex = p.lastLogIndex
		}
	}
	if best == "" {
		return
	}

	in.term++
	in.leader = ""
	in.vote = best
	in.log.Info().Str("successor", string(best)).Msg("abdicating")
	in.writeMetadata()

	msg := Message{
		From:            in.id,
		Term:            in.term,
		LastLogTerm:     in.lastLogTerm,
		LastLogIndex:    in.lastIndex,
		Leader:          in.leader,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
		Vote:            &best,
	}
	in.host.SendMessage(best, msg)
}

// ---- snapshot (§4.8) ----

// Snapshot returns the minimal entry sequence that reproduces this
// instance's state when replayed through Recover.
func (in *Instance) Snapshot(includeUncommitted bool) []LogEntry {
	cfg := in.config
	leader := in.leader
	vote := in.vote
	meta := LogEntry{
		Term:            termPtr(in.term),
		Leader:          &leader,
		Vote:            &vote,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
		Config:          &cfg,
	}
	out := []LogEntry{meta}

	if in.pendingConfig != nil {
		inWaiting := false
		for _, e := range in.waitingCommits {
			if e.Config != nil && e.Index == in.pendingConfig.Index {
				inWaiting = true
				break
			}
		}
		if !inWaiting {
			pc := *in.pendingConfig
			out = append(out, LogEntry{Term: termPtr(pc.Term), Index: pc.Index, Config: &pc})
		}
	}

	if includeUncommitted {
		out = append(out, in.waitingCommits...)
	}
	return out
}

// ---- proposing new entries (leader only) ----

// Propose accepts a new payload and/or configuration change from the
// application. Only valid when IsLeader(); violating that is a caller
// bug and panics, per SPEC_FULL.md §7.
func (in *Instance) Propose(payload []byte, config *Configuration) {
	precondition(in.IsLeader(), "Propose called while not leader (leader=%q)", in.leader)

	entry := LogEntry{
		Term:             termPtr(in.term),
		Index:            in.lastIndex + 1,
		PreviousLogTerm:  in.lastLogTerm,
		PreviousLogIndex: in.lastIndex,
		Payload:          payload,
	}
	if config != nil {
		cfg := *config
		cfg.Term = in.term
		cfg.Index = entry.Index
		entry.Config = &cfg
	}

	in.acceptEntry(entry, false)
	in.deliverCommits()
	in.replicateAll(0)
}

// writeMetadata durably records the current term/vote/leader/commit
// watermarks as a metadata-only entry, grounded on raft_impl.h's
// WriteInternalLogEntry.
func (in *Instance) writeMetadata() {
	leader := in.leader
	vote := in.vote
	in.host.WriteLogEntry(LogEntry{
		Term:            termPtr(in.term),
		Leader:          &leader,
		Vote:            &vote,
		DataCommitted:   in.dataCommitted,
		ConfigCommitted: in.configCommitted,
	})
}
