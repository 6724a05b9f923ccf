// Package report produces the controller's durable artifacts: immutable
// timestamped report files under the reports directory, plus the queryable
// incident history in the store. Reports are the audit trail; they are
// written once at the end of the control flow and never edited.
package report
