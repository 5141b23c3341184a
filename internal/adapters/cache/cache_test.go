package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/airrisk/internal/adapters/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemo(t *testing.T) {
	Convey("Given a memo cache with capacity 3", t, func() {
		ctx := context.Background()
		m, err := cache.New[int](cache.WithCapacity(3), cache.WithMetrics(false))
		So(err, ShouldBeNil)

		Convey("When a key is missing", func() {
			_, ok := m.Get(ctx, "s1_2025-01-01T00:00:00Z")

			Convey("Then it is a miss", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a key is stored", func() {
			m.Add(ctx, "s1_2025-01-01T00:00:00Z", 42)
			v, ok := m.Get(ctx, "s1_2025-01-01T00:00:00Z")

			Convey("Then it is returned unchanged", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 42)
			})
		})

		Convey("When more keys than the capacity are stored", func() {
			m.Add(ctx, "a", 1)
			m.Add(ctx, "b", 2)
			m.Add(ctx, "c", 3)
			_, _ = m.Get(ctx, "a")
			evicted := m.Add(ctx, "d", 4)

			Convey("Then the least recently used key is evicted", func() {
				So(evicted, ShouldBeTrue)
				So(m.Len(), ShouldEqual, 3)
				_, ok := m.Get(ctx, "b")
				So(ok, ShouldBeFalse)
				_, ok = m.Get(ctx, "a")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When purged", func() {
			m.Add(ctx, "a", 1)
			m.Purge()

			Convey("Then it is empty", func() {
				So(m.Len(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given concurrent writers", t, func() {
		ctx := context.Background()
		m, err := cache.New[string](cache.WithCapacity(50))
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					key := fmt.Sprintf("s%d_%d", g, i)
					m.Add(ctx, key, key)
					_, _ = m.Get(ctx, key)
				}
			}(g)
		}
		wg.Wait()

		Convey("Then the size never exceeds the capacity", func() {
			So(m.Len(), ShouldEqual, 50)
		})
	})
}
