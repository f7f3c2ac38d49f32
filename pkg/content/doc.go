// Package content manages content records that optionally carry one image
// stored in an external blob store.
//
// The Service keeps the record table and the blob store in agreement without
// cross-store transactions by ordering every write:
//
//   - create: upload the blob, then insert the row
//   - update: upload the new blob, update the row, then delete the old blob
//   - delete: delete the row, then delete the blob
//
// A record's ImageKey therefore never references a missing blob. A failure
// between the two writes can leave an unreferenced blob behind; those orphans
// are harmless and can be collected by the reconcile package.
//
// Repositories (memory, Postgres) and blob stores (memory, filesystem, S3) are
// provided under subpackages.
package content
