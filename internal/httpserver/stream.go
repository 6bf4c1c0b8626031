package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/events"
)

var streamTopics = []events.Topic{
	events.TopicCartChanged,
	events.TopicCartCount,
	events.TopicBadgeChanged,
	events.TopicToastsChanged,
	events.TopicAuthChanged,
	events.TopicLoginRequired,
	events.TopicNotice,
}

const streamBuffer = 64

// streamHandler relays bus events as server-sent events. A client that falls
// behind loses events rather than stalling the publisher.
func streamHandler(sub events.Subscriber, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue := make(chan events.Event, streamBuffer)
		unsubscribe := sub.Subscribe(func(ev events.Event) {
			select {
			case queue <- ev:
			default:
				logger.WithField("topic", ev.Topic).Warn("event stream full, dropping event")
			}
		}, streamTopics...)
		defer unsubscribe()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.SSEvent("ready", gin.H{"topics": streamTopics})
		c.Writer.Flush()

		ctx := c.Request.Context()
		c.Stream(func(_ io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case ev := <-queue:
				c.SSEvent(string(ev.Topic), ev)
				return true
			}
		})
	}
}
