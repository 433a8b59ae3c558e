package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"purchasegate/internal/family"
	"purchasegate/pkg/domain"
)

// SESAPI is the SES v2 call used by EmailSink.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// ContactLookup resolves a parent's email address.
type ContactLookup interface {
	ParentContact(ctx context.Context, parentID domain.ParentID) (*family.Parent, error)
}

// EmailSink emails parents through Amazon SES. Only events a parent must act
// on or be told about are mailed; everything else is skipped.
type EmailSink struct {
	client   SESAPI
	contacts ContactLookup
	sender   string
}

// NewSESClient loads the default AWS credential chain for region.
func NewSESClient(ctx context.Context, region string) (*sesv2.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sesv2.NewFromConfig(cfg), nil
}

func NewEmailSink(client SESAPI, contacts ContactLookup, sender string) *EmailSink {
	return &EmailSink{client: client, contacts: contacts, sender: sender}
}

func (s *EmailSink) Send(ctx context.Context, msg Message) error {
	subject, ok := emailSubjects[msg.Event]
	if !ok {
		return nil
	}
	parent, err := s.contacts.ParentContact(ctx, msg.ParentID)
	if err != nil {
		return fmt.Errorf("resolve parent contact: %w", err)
	}
	if parent.Email == "" {
		return nil
	}

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{parent.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(emailBody(parent.DisplayName, msg)),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

var emailSubjects = map[Event]string{
	EventApprovalRequested: "A purchase is waiting for your approval",
	EventApprovalExpired:   "A purchase request has expired",
	EventPurchaseCompleted: "Purchase complete",
	EventPurchaseRefunded:  "Purchase refunded",
}

func emailBody(name string, msg Message) string {
	var b strings.Builder
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	switch msg.Event {
	case EventApprovalRequested:
		fmt.Fprintf(&b, "Your child asked to buy %q for %s.\n", msg.Payload.PackTitle, formatAmount(msg.Payload.Amount, msg.Payload.Currency))
		if msg.Payload.DeepLink != "" {
			fmt.Fprintf(&b, "Review the request: %s\n", msg.Payload.DeepLink)
		}
		if msg.Payload.ExpiresAt != nil {
			fmt.Fprintf(&b, "The request expires at %s.\n", msg.Payload.ExpiresAt.UTC().Format("15:04 MST"))
		}
	case EventApprovalExpired:
		fmt.Fprintf(&b, "The request to buy %q expired before it was answered.\n", msg.Payload.PackTitle)
	case EventPurchaseCompleted:
		fmt.Fprintf(&b, "%q was added to your child's library for %s.\n", msg.Payload.PackTitle, formatAmount(msg.Payload.Amount, msg.Payload.Currency))
	case EventPurchaseRefunded:
		fmt.Fprintf(&b, "%q was refunded (%s).\n", msg.Payload.PackTitle, formatAmount(msg.Payload.Amount, msg.Payload.Currency))
	}
	return b.String()
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency)
}
