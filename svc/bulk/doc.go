// Package bulk sends one notification to many users.
//
// The user ids are split into chunks (100 by default). Each chunk is created
// concurrently and fully settled before the next one starts, with a short
// pause in between. A failure for one user never aborts the run; it is
// reported in Result.Errors. Every run ends with a "notifications.bulk_send"
// audit event carrying the counts and the created ids.
package bulk
