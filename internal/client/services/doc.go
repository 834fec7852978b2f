// Package services contains the evidence pipeline of the TrueCam client.
//
// A capture flows through CaptureService.SealAndPersist: the payload is
// fingerprinted, the Sealer runs the provider protocol (using TokenCache and
// CaseManager), and the EvidenceStore persists the record locally before
// attempting remote replication. Remote failures degrade the outcome
// (local_only, synced=false); only local storage failures are returned.
package services
