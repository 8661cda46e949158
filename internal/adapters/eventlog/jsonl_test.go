package eventlog_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigil-labs/prophet/internal/adapters/eventlog"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestStore(t *testing.T) *eventlog.FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	return eventlog.NewFileStore(eventlog.WithPath(path))
}

func TestFileStore_AppendAndQuery(t *testing.T) {
	Convey("Given a file-backed event store", t, func() {
		ctx := context.Background()
		store := newTestStore(t)

		Convey("When the log file does not exist yet", func() {
			events, err := store.Query(ctx, eventlog.Filter{})

			Convey("Then the query yields an empty slice", func() {
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
			})
		})

		Convey("When several events are appended", func() {
			for i := 0; i < 5; i++ {
				err := store.Append(ctx, "merchant", eventlog.TypeSignalDetected, map[string]any{
					"market_id": fmt.Sprintf("mkt-%d", i),
				})
				So(err, ShouldBeNil)
			}

			Convey("Then queries return them in append order", func() {
				events, err := store.Query(ctx, eventlog.Filter{})
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 5)
				for i, e := range events {
					So(e.Properties["market_id"], ShouldEqual, fmt.Sprintf("mkt-%d", i))
				}
			})

			Convey("And each event carries a timestamp", func() {
				events, err := store.Query(ctx, eventlog.Filter{})
				So(err, ShouldBeNil)
				So(events[0].Timestamp.IsZero(), ShouldBeFalse)
				So(events[0].Timestamp.After(time.Now().Add(time.Minute)), ShouldBeFalse)
			})
		})

		Convey("When events of different types and subjects coexist", func() {
			So(store.Append(ctx, "alice", eventlog.TypeSignalDetected, map[string]any{"market_id": "a1"}), ShouldBeNil)
			So(store.Append(ctx, "alice", eventlog.TypeFeedback, map[string]any{"market_id": "a2"}), ShouldBeNil)
			So(store.Append(ctx, "bob", eventlog.TypeFeedback, map[string]any{"market_id": "b1"}), ShouldBeNil)

			Convey("Then filters are conjunctive", func() {
				events, err := store.Query(ctx, eventlog.Filter{
					SubjectID: "alice",
					EventType: eventlog.TypeFeedback,
				})
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].Properties["market_id"], ShouldEqual, "a2")
			})

			Convey("And an empty filter matches everything", func() {
				events, err := store.Query(ctx, eventlog.Filter{})
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 3)
			})
		})
	})
}

func TestFileStore_TornFinalLine(t *testing.T) {
	Convey("Given a log whose final line was torn by an interruption", t, func() {
		ctx := context.Background()
		store := newTestStore(t)

		So(store.Append(ctx, "merchant", eventlog.TypeFeedback, map[string]any{"market_id": "m1"}), ShouldBeNil)
		So(store.Append(ctx, "merchant", eventlog.TypeFeedback, map[string]any{"market_id": "m2"}), ShouldBeNil)

		f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
		So(err, ShouldBeNil)
		_, err = f.WriteString(`{"subject_id":"merchant","event_ty`)
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		Convey("When querying the log", func() {
			events, err := store.Query(ctx, eventlog.Filter{})

			Convey("Then intact events survive and the torn line is skipped", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].Properties["market_id"], ShouldEqual, "m1")
				So(events[1].Properties["market_id"], ShouldEqual, "m2")
			})
		})

		Convey("When appending after the torn line", func() {
			So(store.Append(ctx, "merchant", eventlog.TypeFeedback, map[string]any{"market_id": "m3"}), ShouldBeNil)

			Convey("Then the new event does not glue onto the torn tail", func() {
				events, err := store.Query(ctx, eventlog.Filter{})
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 3)
				So(events[2].Properties["market_id"], ShouldEqual, "m3")
			})
		})
	})
}

func TestFileStore_Reset(t *testing.T) {
	Convey("Given a store holding events", t, func() {
		ctx := context.Background()
		store := newTestStore(t)
		So(store.Append(ctx, "merchant", eventlog.TypeFeedback, map[string]any{"market_id": "m1"}), ShouldBeNil)

		Convey("When resetting", func() {
			So(store.Reset(ctx), ShouldBeNil)

			Convey("Then the log is empty", func() {
				events, err := store.Query(ctx, eventlog.Filter{})
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
			})

			Convey("And a second reset is not an error", func() {
				So(store.Reset(ctx), ShouldBeNil)
			})
		})
	})
}

func TestFileStore_ContextCancellation(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		store := newTestStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then append fails with the append sentinel", func() {
			err := store.Append(ctx, "merchant", eventlog.TypeFeedback, nil)
			So(err, ShouldWrap, eventlog.ErrAppend)
		})

		Convey("And query fails with the query sentinel", func() {
			_, err := store.Query(ctx, eventlog.Filter{})
			So(err, ShouldWrap, eventlog.ErrQuery)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given an in-memory event store", t, func() {
		ctx := context.Background()
		store := eventlog.NewMemoryStore()

		Convey("When appending and mutating the caller's map afterwards", func() {
			props := map[string]any{"market_id": "m1"}
			So(store.Append(ctx, "merchant", eventlog.TypeFeedback, props), ShouldBeNil)
			props["market_id"] = "changed"

			Convey("Then the stored event keeps the original value", func() {
				events, err := store.Query(ctx, eventlog.Filter{})
				So(err, ShouldBeNil)
				So(events[0].Properties["market_id"], ShouldEqual, "m1")
			})
		})

		Convey("When resetting", func() {
			So(store.Append(ctx, "merchant", eventlog.TypeFeedback, nil), ShouldBeNil)
			So(store.Reset(ctx), ShouldBeNil)

			Convey("Then the store is empty", func() {
				So(store.Len(), ShouldEqual, 0)
			})
		})
	})
}
