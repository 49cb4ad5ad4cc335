package raft

// peerState is the leader's (or candidate's) view of one other node,
// grounded on raft_impl.h's private per-peer NodeState.
type peerState struct {
	term Term
	vote NodeID // who this peer says it voted for, this term

	sentTerm  Term
	sentIndex Index

	lastLogTerm  Term
	lastLogIndex Index

	ackReceived int64 // monotonic tick timestamp of last message received
}
