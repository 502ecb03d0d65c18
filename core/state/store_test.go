package state

import (
	"testing"

	"Bt1QPlayer/model"
)

func TestSubscribeReceivesCurrentSnapshot(t *testing.T) {
	s := NewStore()
	s.Update(func(next *model.PlaybackState) { next.IsLoading = true })

	var got []model.PlaybackState
	unsub := s.Subscribe(func(st model.PlaybackState) { got = append(got, st) })
	defer unsub()

	if len(got) != 1 || !got[0].IsLoading {
		t.Fatalf("expected immediate callback with current snapshot, got %+v", got)
	}
}

func TestUpdateBroadcastsInOrder(t *testing.T) {
	s := NewStore()

	var a, b []bool
	s.Subscribe(func(st model.PlaybackState) { a = append(a, st.IsPlaying) })
	s.Subscribe(func(st model.PlaybackState) { b = append(b, st.IsPlaying) })

	s.Update(func(next *model.PlaybackState) { next.IsPlaying = true })
	s.Update(func(next *model.PlaybackState) { next.IsPlaying = false })

	want := []bool{false, true, false}
	for name, got := range map[string][]bool{"a": a, "b": b} {
		if len(got) != len(want) {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: got %v, want %v", name, got, want)
			}
		}
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := NewStore()
	calls := 0
	unsub := s.Subscribe(func(model.PlaybackState) { calls++ })

	unsub()
	unsub() // 重复调用无副作用
	s.Update(func(next *model.PlaybackState) { next.PositionMs = 10 })

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (initial only)", calls)
	}
	if n := s.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	s := NewStore()
	s.Update(func(next *model.PlaybackState) {
		next.Queue = []model.Track{{ID: "a"}, {ID: "b"}}
	})

	snap := s.Snapshot()
	snap.Queue[0].ID = "mutated"

	if s.Snapshot().Queue[0].ID != "a" {
		t.Error("mutating a returned snapshot must not affect the store")
	}
}

func TestInitialState(t *testing.T) {
	st := NewStore().Snapshot()
	if st.IsPlaying || st.IsLoading || st.CurrentTrack != nil || st.CurrentIndex != -1 || st.RepeatMode != model.RepeatOff {
		t.Errorf("unexpected initial state %+v", st)
	}
	if st.Queue == nil {
		t.Error("queue should be an empty slice, not nil")
	}
}
