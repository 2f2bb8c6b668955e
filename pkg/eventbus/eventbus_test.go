// Copyright 2025 PackWatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package eventbus

import (
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEventBus(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventBus Suite")
}

var _ = Describe("EventBus", func() {
	var eb *EventBus

	BeforeEach(func() {
		eb = NewEventBus(100)
	})

	Describe("NewEventBus", func() {
		It("should create event bus with specified buffer size", func() {
			eb := NewEventBus(50)
			Expect(eb).NotTo(BeNil())
			Expect(eb.bufferSize).To(Equal(50))
			Expect(eb.subscribers).NotTo(BeNil())
		})

		It("should use default buffer size when given zero or negative", func() {
			Expect(NewEventBus(0).bufferSize).To(Equal(defaultBufferSize))
			Expect(NewEventBus(-10).bufferSize).To(Equal(defaultBufferSize))
		})
	})

	Describe("Subscribe", func() {
		It("should create a subscription and return a channel", func() {
			ch := eb.Subscribe("intake.photo")
			Expect(ch).NotTo(BeNil())
			Expect(cap(ch)).To(Equal(100))
		})

		It("should allow multiple subscriptions to the same topic", func() {
			ch1 := eb.Subscribe("compliance.report")
			ch2 := eb.Subscribe("compliance.report")

			Expect(ch1).NotTo(Equal(ch2))

			eb.mu.RLock()
			Expect(eb.subscribers["compliance.report"]).To(HaveLen(2))
			eb.mu.RUnlock()
		})
	})

	Describe("Publish", func() {
		It("should deliver events to all subscribers of a topic", func() {
			ch1 := eb.Subscribe("compliance.report")
			ch2 := eb.Subscribe("compliance.report")

			eb.Publish("compliance.report", Event{Payload: "verdict"})

			Eventually(ch1).Should(Receive(Equal(Event{Payload: "verdict"})))
			Eventually(ch2).Should(Receive(Equal(Event{Payload: "verdict"})))
		})

		It("should not deliver events to subscribers of other topics", func() {
			ch := eb.Subscribe("intake.photo")

			eb.Publish("compliance.report", Event{Payload: "verdict"})

			Consistently(ch).ShouldNot(Receive())
		})

		It("should be a no-op on a topic without subscribers", func() {
			Expect(func() {
				eb.Publish("nobody.listening", Event{Payload: 1})
			}).NotTo(Panic())
		})

		It("should drop events for a subscriber with a full buffer", func() {
			small := NewEventBus(1)
			ch := small.Subscribe("intake.photo")

			small.Publish("intake.photo", Event{Payload: 1})
			small.Publish("intake.photo", Event{Payload: 2})

			Expect(small.Dropped()).To(Equal(int64(1)))
			Eventually(ch).Should(Receive(Equal(Event{Payload: 1})))
		})

		It("should handle concurrent publishers", func() {
			ch := eb.Subscribe("intake.photo")

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					eb.Publish("intake.photo", Event{Payload: n})
				}(i)
			}
			wg.Wait()

			Expect(ch).To(HaveLen(50))
		})
	})

	Describe("Unsubscribe", func() {
		It("should remove the subscription and close the channel", func() {
			ch := eb.Subscribe("intake.photo")
			eb.Unsubscribe("intake.photo", ch)

			eb.mu.RLock()
			Expect(eb.subscribers["intake.photo"]).To(BeEmpty())
			eb.mu.RUnlock()

			_, open := <-ch
			Expect(open).To(BeFalse())
		})

		It("should leave other subscriptions intact", func() {
			ch1 := eb.Subscribe("intake.photo")
			ch2 := eb.Subscribe("intake.photo")

			eb.Unsubscribe("intake.photo", ch1)

			eb.Publish("intake.photo", Event{Payload: "photo"})
			Eventually(ch2).Should(Receive())
		})

		It("should ignore unknown topics and channels", func() {
			ch := make(EventChan)
			Expect(func() {
				eb.Unsubscribe("unknown", ch)
			}).NotTo(Panic())
		})
	})
})
