// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package broadcast

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/pdiddy/article-engine/pkg/types"
)

// EventTypePrefix prefixes the CloudEvents type attribute, for example
// com.articleengine.session.completed.
const EventTypePrefix = "com.articleengine.session."

// deliveryTimeout bounds a single webhook POST.
var deliveryTimeout = 10 * time.Second

// CloudEventSink posts each event to a webhook as a binary-mode CloudEvent.
type CloudEventSink struct {
	client cloudevents.Client
}

// NewCloudEventSink creates a sink targeting url.
func NewCloudEventSink(url string) (*CloudEventSink, error) {
	c, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(url))
	if err != nil {
		return nil, fmt.Errorf("creating cloudevents client: %w", err)
	}
	return &CloudEventSink{client: c}, nil
}

// Send delivers ev and fails unless the receiver acknowledges it.
func (s *CloudEventSink) Send(ev types.Event) error {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource("article-engine/sessions")
	e.SetSubject(ev.SessionID)
	e.SetType(EventTypePrefix + string(ev.Type))
	e.SetTime(ev.Timestamp)
	if err := e.SetData(cloudevents.ApplicationJSON, ev); err != nil {
		return fmt.Errorf("encoding event data: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if result := s.client.Send(ctx, e); !cloudevents.IsACK(result) {
		return fmt.Errorf("delivering %s event: %w", ev.Type, result)
	}
	return nil
}
