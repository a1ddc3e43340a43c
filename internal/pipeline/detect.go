package pipeline

import "strings"

// Subject contract of the upstream order-confirmation template. The
// same mailbox also receives shipment and cancellation notices with
// near-identical bodies, so the subject is the primary noise filter.
const orderSubjectMarker = `Your Amazon.com order of "`

var subjectExclusions = []string{
	"has shipped",
	"has been canceled",
}

// IsOrderConfirmation reports whether the subject line identifies a
// qualifying order-confirmation message.
func IsOrderConfirmation(subject string) bool {
	if !strings.Contains(subject, orderSubjectMarker) {
		return false
	}
	for _, marker := range subjectExclusions {
		if strings.Contains(subject, marker) {
			return false
		}
	}
	return true
}
