// Package journal keeps a local, append-only record of access cycles.
//
// Every outcome that read a card becomes one row in the access_journal
// table. The journal is written after the decision and never read by it;
// it exists for the status API and for on-site diagnosis when the
// authorization service is unreachable. Tokens are stored according to the
// configured exposure level and raw card UIDs are never stored.
//
// A Pruner deletes rows older than the retention period on a fixed interval.
package journal
