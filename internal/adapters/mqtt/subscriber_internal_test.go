package mqtt

import (
	"bytes"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/okian/airrisk/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

// stubClient records the calls Stop makes. Other paho.Client methods panic.
type stubClient struct {
	paho.Client
	connected    bool
	unsubscribed []string
	disconnects  int
}

func (c *stubClient) IsConnected() bool { return c.connected }

func (c *stubClient) Unsubscribe(topics ...string) paho.Token {
	c.unsubscribed = append(c.unsubscribed, topics...)
	return doneToken{}
}

func (c *stubClient) Disconnect(uint) { c.disconnects++ }

func TestSubscriberStop(t *testing.T) {
	Convey("Given a subscriber", t, func() {
		So(logger.Init(logger.WithWriter(&bytes.Buffer{})), ShouldBeNil)
		s := NewSubscriber("tcp://127.0.0.1:1883", nil)

		Convey("When its client is still reconnecting", func() {
			c := &stubClient{}
			s.client = c
			s.Stop()

			Convey("Then it is disconnected without unsubscribing", func() {
				So(c.disconnects, ShouldEqual, 1)
				So(c.unsubscribed, ShouldBeEmpty)
			})

			Convey("And a second Stop does nothing", func() {
				s.Stop()
				So(c.disconnects, ShouldEqual, 1)
			})
		})

		Convey("When its client is connected", func() {
			c := &stubClient{connected: true}
			s.client = c
			s.Stop()

			Convey("Then it unsubscribes and disconnects", func() {
				So(c.unsubscribed, ShouldResemble, []string{DefaultTopic})
				So(c.disconnects, ShouldEqual, 1)
			})
		})

		Convey("When it was never started", func() {
			Convey("Then Stop is a no-op", func() {
				So(s.Stop, ShouldNotPanic)
			})
		})
	})
}
