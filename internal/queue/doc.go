// Package queue implements the durable send queue and its processor.
//
// Items move scheduled → processing → {sent|failed}; scheduled items may
// also be cancelled, and a processing item returns to scheduled when a
// failed send still has retries left or a claim goes stale. Terminal states
// never transition again.
//
// The processor claims each item with a conditional status update before
// attempting the send, so concurrent invocations cannot double-send: only
// one caller wins the scheduled → processing compare-and-swap.
package queue
