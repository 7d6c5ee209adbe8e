// Package automation implements the trigger-driven, time-delayed campaign
// definitions and their dispatcher.
//
// An automation binds a trigger type to an ordered list of email steps.
// Step order is never trusted from the client: every save renumbers steps to
// their array position, so stored orders are always contiguous 0..n-1.
//
// The dispatcher turns one trigger event into queue writes, one item per
// step of every matching active automation. There is deliberately no
// deduplication: firing the same trigger twice for the same recipient
// produces two independent step sequences.
package automation
