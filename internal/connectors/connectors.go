package connectors

import "github.com/GraysonCAdams/amazon-ynab-sync/internal"

type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
