package service

// Event subjects published to NATS when a connection is configured.
// Publishing is best-effort: a nil publisher or a publish error never fails
// the operation that triggered the event.
const (
	// EventSubjectDelegatedSubmission announces a redeemed delegated
	// submission token.
	EventSubjectDelegatedSubmission = "marking.submissions.delegated"
	// EventSubjectReportSent announces a dispatched student report.
	EventSubjectReportSent = "marking.reports.sent"
)

// EventPublisher publishes marking events to interested subscribers.
// *nats.Conn satisfies it directly.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}
