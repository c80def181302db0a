package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/tripplanner/internal/realtime"
)

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 30 * time.Second

// frame is one server-sent event. Last ends the stream after it is written.
type frame struct {
	Event string
	Data  interface{}
	Last  bool
}

func startEventStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

// streamSubscription writes every value of sub as an event until the client goes away, the
// subscription ends or render marks a frame as the last one. It closes sub on return.
func streamSubscription[T any](c *gin.Context, sub *realtime.Subscription[T], render func(T) frame) {
	defer sub.Close()
	startEventStream(c)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()

	for {
		select {
		case v := <-sub.Updates():
			f := render(v)
			c.SSEvent(f.Event, f.Data)
			c.Writer.Flush()
			if f.Last {
				return
			}
		case <-sub.Done():
			select {
			case v := <-sub.Updates():
				f := render(v)
				c.SSEvent(f.Event, f.Data)
				if f.Last {
					c.Writer.Flush()
					return
				}
			default:
			}
			if err := sub.Err(); err != nil {
				c.SSEvent("error", ErrorResponse{Error: "Stream closed", Details: err.Error()})
			} else {
				c.SSEvent("end", SuccessResponse{Message: "Stream closed"})
			}
			c.Writer.Flush()
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
