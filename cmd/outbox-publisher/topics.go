package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// topicPublishers keeps one publisher per topic for the life of Run.
type topicPublishers struct {
	mu      sync.Mutex
	create  publisherFactory
	byTopic map[string]publisher
}

func newTopicPublishers(create publisherFactory) *topicPublishers {
	return &topicPublishers{create: create, byTopic: map[string]publisher{}}
}

// get returns nil when the factory cannot build a publisher for topic; the
// miss is not cached so a later batch tries again.
func (t *topicPublishers) get(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.byTopic[topic]; ok {
		return pub
	}
	pub := t.create(topic)
	if pub != nil {
		t.byTopic[topic] = pub
	}
	return pub
}

// stop flushes and releases every publisher that supports it.
func (t *topicPublishers) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, pub := range t.byTopic {
		if stopper, ok := pub.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		delete(t.byTopic, topic)
	}
}

func gcpPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpPublishResult{p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
