package delivery

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// maxMulticastTokens is the FCM limit on tokens per multicast call.
const maxMulticastTokens = 500

// MulticastSender is the part of *messaging.Client the FCM transport uses.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMTransport delivers notifications through Firebase Cloud Messaging.
type FCMTransport struct {
	client   MulticastSender
	classify func(error) string
}

// NewFCMTransport creates an FCM transport over a messaging client.
func NewFCMTransport(client MulticastSender) *FCMTransport {
	return &FCMTransport{client: client, classify: classifyFCMError}
}

// SendMulticast sends in chunks of maxMulticastTokens. A failed chunk marks
// its tokens as failed; the call only errors if no chunk could be sent.
func (t *FCMTransport) SendMulticast(ctx context.Context, n Notification, tokens []string) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(tokens))
	var lastErr error
	sentChunks := 0

	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := start + maxMulticastTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		resp, err := t.client.SendEachForMulticast(ctx, buildMessage(n, chunk))
		if err != nil {
			lastErr = err
			for _, token := range chunk {
				outcomes = append(outcomes, Outcome{Token: token, ErrorCode: ErrorCodeOther})
			}
			continue
		}
		sentChunks++

		outcomes = append(outcomes, t.chunkOutcomes(chunk, resp)...)
	}

	if sentChunks == 0 && lastErr != nil {
		return nil, fmt.Errorf("fcm multicast: %w", lastErr)
	}
	return outcomes, nil
}

// chunkOutcomes maps one batch response onto its tokens. When every token of
// a multi-token chunk is rejected as invalid with the same error, the request
// itself was bad, so none of the tokens are reported as permanently invalid.
func (t *FCMTransport) chunkOutcomes(chunk []string, resp *messaging.BatchResponse) []Outcome {
	outcomes := make([]Outcome, len(chunk))
	invalid := 0
	var firstErr string
	sameErr := true

	for i, token := range chunk {
		outcomes[i] = Outcome{Token: token, ErrorCode: ErrorCodeOther}
		if i >= len(resp.Responses) || resp.Responses[i] == nil {
			sameErr = false
			continue
		}
		r := resp.Responses[i]
		if r.Success {
			outcomes[i] = Outcome{Token: token, Success: true}
			sameErr = false
			continue
		}
		outcomes[i].ErrorCode = t.classify(r.Error)
		if outcomes[i].ErrorCode != ErrorCodeInvalidToken {
			sameErr = false
			continue
		}
		invalid++
		msg := fmt.Sprint(r.Error)
		if invalid == 1 {
			firstErr = msg
		} else if msg != firstErr {
			sameErr = false
		}
	}

	if len(chunk) > 1 && invalid == len(chunk) && sameErr {
		for i := range outcomes {
			outcomes[i].ErrorCode = ErrorCodeOther
		}
	}
	return outcomes
}

func buildMessage(n Notification, tokens []string) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   n.Data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
	}
	if n.Link != "" {
		msg.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: n.Link},
		}
	}
	return msg
}

func classifyFCMError(err error) string {
	switch {
	case err == nil:
		return ErrorCodeOther
	case messaging.IsUnregistered(err):
		return ErrorCodeNotRegistered
	case isInvalidRegistrationToken(err):
		return ErrorCodeInvalidToken
	default:
		return ErrorCodeOther
	}
}

// isInvalidRegistrationToken reports an INVALID_ARGUMENT that names the
// registration token. FCM also answers INVALID_ARGUMENT for request problems
// such as an oversized payload, which say nothing about the token.
func isInvalidRegistrationToken(err error) bool {
	return messaging.IsInvalidArgument(err) &&
		strings.Contains(strings.ToLower(err.Error()), "registration token")
}
