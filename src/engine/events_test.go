package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFansOutToConversationSubscribers(t *testing.T) {
	broker := NewEventBroker()

	ch1, cancel1 := broker.Subscribe("conv-1")
	defer cancel1()
	ch2, cancel2 := broker.Subscribe("conv-1")
	defer cancel2()
	other, cancelOther := broker.Subscribe("conv-2")
	defer cancelOther()

	broker.PublishMessage(EventTextChunk, "conv-1", "msg-1", "hello", "")

	for _, ch := range []<-chan ConversationEvent{ch1, ch2} {
		event := <-ch
		msgEvent, ok := event.(*MessageEvent)
		require.True(t, ok)
		assert.Equal(t, EventTextChunk, msgEvent.GetType())
		assert.Equal(t, "conv-1", msgEvent.GetConversationID())
		assert.Equal(t, "hello", msgEvent.Content)
	}

	select {
	case event := <-other:
		t.Fatalf("conv-2 subscriber received foreign event %v", event)
	default:
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := NewEventBroker()

	ch, cancel := broker.Subscribe("conv-1")
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Double cancel is safe.
	cancel()
}

func TestBrokerNeverBlocksOnSlowSubscriber(t *testing.T) {
	broker := NewEventBroker()

	_, cancel := broker.Subscribe("conv-1")
	defer cancel()

	// Publish far past the channel buffer without anyone reading. Overflow
	// must drop, not deadlock.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			broker.PublishNotice("conv-1", "notice")
		}
		close(done)
	}()
	<-done
}

func TestDocumentEventPayload(t *testing.T) {
	broker := NewEventBroker()
	ch, cancel := broker.Subscribe("conv-1")
	defer cancel()

	broker.PublishDocument(EventDocumentCommitted, "conv-1", DocAnalysis, 4, ReasonGenerated)

	event := <-ch
	docEvent, ok := event.(*DocumentEvent)
	require.True(t, ok)
	assert.Equal(t, string(DocAnalysis), docEvent.DocType)
	assert.Equal(t, 4, docEvent.Version)
	assert.Equal(t, ReasonGenerated, docEvent.Reason)
	assert.False(t, docEvent.GetTimestamp().IsZero())
}
