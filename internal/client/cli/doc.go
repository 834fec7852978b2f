// Package cli provides the interactive TrueCam command-line client.
//
// It wires configuration, the local SQLite stores, the provider client, the
// optional remote object store and ledger, and an interactive REPL. A
// background watcher probes the intermediary and shows whether sealing is
// currently reachable; captures are accepted either way.
//
// Commands:
//   - capture <file> [lat lon accuracy]   seal and save a photo
//   - list                                show the evidence history
//   - show <id>                           show one record with its audit trail
//   - image <id>                          resolve a displayable handle
//   - verify <file>                       look a file up in the ledger and history
//   - actor [id|-]                        show, set or clear the replication actor
//   - orphans                             list remote blobs without a ledger row
//   - clear -y                            drop the local history and blobs
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
