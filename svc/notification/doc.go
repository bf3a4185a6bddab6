// Package notification owns the notification data model, its status
// machine and the lifecycle manager that creates and edits notifications.
//
// Statuses move PENDING|SCHEDULED -> SENDING -> SENT, or back to SCHEDULED
// while retries remain, or to FAILED once they are exhausted. PENDING and
// SCHEDULED rows can be CANCELLED, and any non-terminal row can be EXPIRED
// by the sweeper. SENT, FAILED, CANCELLED and EXPIRED are terminal.
//
// The Store interface is the only shared mutable state. Every change is a
// single-row compare-and-set on the expected status.
package notification
