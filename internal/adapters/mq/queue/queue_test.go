package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/hepplot/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func task(id string) Task {
	return Task{ID: id, Job: &config.Job{Kind: config.KindPulls, FileName: id + ".csv"}}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue of capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		ctx := context.Background()
		So(q.Len(), ShouldEqual, 0)

		Convey("When it is filled", func() {
			So(q.Enqueue(ctx, task("a")), ShouldBeNil)
			So(q.Enqueue(ctx, task("b")), ShouldBeNil)

			Convey("Then a third task is refused", func() {
				So(errors.Is(q.Enqueue(ctx, task("c")), ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then Put waits until the context ends", func() {
				short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				So(errors.Is(q.Put(short, task("c")), context.DeadlineExceeded), ShouldBeTrue)
			})

			Convey("Then tasks come out in order and the channel closes after Close", func() {
				So(q.Close(), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
				var got []string
				for tk := range q.Dequeue(ctx) {
					got = append(got, tk.ID)
				}
				So(got, ShouldResemble, []string{"a", "b"})
			})
		})

		Convey("When it is closed", func() {
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then nothing can be added", func() {
				So(errors.Is(q.Enqueue(ctx, task("a")), ErrClosed), ShouldBeTrue)
				So(errors.Is(q.Put(ctx, task("a")), ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given a blocked producer and a consumer", t, func() {
		q := NewInMemoryQueue(WithCapacity(1))
		ctx := context.Background()
		done := make(chan error, 1)
		go func() {
			for _, id := range []string{"a", "b", "c"} {
				if err := q.Put(ctx, task(id)); err != nil {
					done <- err
					return
				}
			}
			done <- q.Close()
		}()

		var got []string
		for tk := range q.Dequeue(ctx) {
			got = append(got, tk.ID)
		}
		So(<-done, ShouldBeNil)
		So(got, ShouldResemble, []string{"a", "b", "c"})
	})
}
