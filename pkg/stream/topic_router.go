package stream

import (
	"github.com/Tributary-ai-services/ContextGuard/pkg/audit"
)

// TopicRouter determines which topics an event should be published to
type TopicRouter struct {
	topics Topics
}

// NewTopicRouter creates a new topic router with the given topic configuration
func NewTopicRouter(topics Topics) *TopicRouter {
	return &TopicRouter{
		topics: topics,
	}
}

// Route returns the list of topics this event should be published to.
//
// Routing rules:
//   - ALL events go to topics.Events
//   - Events with at least one critical finding also go to topics.Critical
//   - Redacted outcomes also go to topics.Redactions
//
// Topics left empty in the configuration are skipped.
func (r *TopicRouter) Route(event audit.Event) []string {
	topics := make([]string, 0, 3)
	add := func(topic string) {
		if topic != "" {
			topics = append(topics, topic)
		}
	}

	add(r.topics.Events)

	if event.Critical > 0 {
		add(r.topics.Critical)
	}

	if event.Action == audit.OutcomeRedacted {
		add(r.topics.Redactions)
	}

	return topics
}
