// Package postgres implements the repository interfaces of the segment,
// automation, and queue packages against PostgreSQL via database/sql and
// lib/pq. Multi-row writes (dispatch batches, step replacement) run inside
// explicit transactions; the queue claim is a conditional UPDATE so
// concurrent processors cannot double-send.
package postgres
