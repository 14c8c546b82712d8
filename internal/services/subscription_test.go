package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/types"
)

func profileChanged(uid uuid.UUID) docstore.ChangeEvent {
	return docstore.ChangeEvent{Path: "users", DocID: uid.String(), Kind: docstore.ChangeUpdated}
}

func TestSubscriptionDeliversReloadedProfile(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	loader := &fakeLoader{p: profileFixture(uid)}
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})
	defer unsub()

	store.fire(profileChanged(uid))
	if len(got) != 1 {
		t.Fatalf("deliveries: want=1 got=%d", len(got))
	}
	if got[0] == nil || got[0].UserID != uid {
		t.Fatalf("wrong profile delivered: %+v", got[0])
	}
	if loader.calls != 1 {
		t.Fatalf("each change reloads exactly once, got %d loads", loader.calls)
	}
}

func TestSubscriptionDiscardsStaleRevisions(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	current := profileFixture(uid)
	current.Revision = 5
	loader := &fakeLoader{p: current}
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})
	defer unsub()

	store.fire(profileChanged(uid))
	store.fire(profileChanged(uid)) // same revision again
	if len(got) != 1 {
		t.Fatalf("stale revision delivered: %d deliveries", len(got))
	}

	older := profileFixture(uid)
	older.Revision = 4
	loader.set(older)
	store.fire(profileChanged(uid))
	if len(got) != 1 {
		t.Fatalf("older revision delivered: %d deliveries", len(got))
	}

	newer := profileFixture(uid)
	newer.Revision = 6
	loader.set(newer)
	store.fire(profileChanged(uid))
	if len(got) != 2 {
		t.Fatalf("newer revision not delivered: %d deliveries", len(got))
	}
	if got[1].Revision != 6 {
		t.Fatalf("delivered revision: want=6 got=%d", got[1].Revision)
	}
}

func TestSubscriptionReloadFailureSkipsDelivery(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	loader := &fakeLoader{err: fmt.Errorf("store flaking")}
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})
	defer unsub()

	store.fire(profileChanged(uid))
	if len(got) != 0 {
		t.Fatalf("failed reload still delivered: %d", len(got))
	}

	// The subscription survives the error and delivers once loads recover.
	loader.err = nil
	loader.set(profileFixture(uid))
	store.fire(profileChanged(uid))
	if len(got) != 1 {
		t.Fatalf("recovered subscription did not deliver: %d", len(got))
	}
}

func TestSubscriptionProfileGoneNotifiesOnce(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	loader := &fakeLoader{} // Load returns nil: the record is gone
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})
	defer unsub()

	store.fire(profileChanged(uid))
	if len(got) != 1 || got[0] != nil {
		t.Fatalf("want a single nil delivery, got %d: %+v", len(got), got)
	}

	// Closed: later events, even with a profile back in place, stay silent.
	loader.set(profileFixture(uid))
	store.fire(profileChanged(uid))
	if len(got) != 1 {
		t.Fatalf("closed subscription delivered again: %d", len(got))
	}
}

func TestSubscriptionSetupFailure(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	store.subErr = fmt.Errorf("notifier unavailable")
	svc, err := NewSubscriptionService(store, &fakeLoader{p: profileFixture(uid)}, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})
	if len(got) != 1 || got[0] != nil {
		t.Fatalf("setup failure must deliver nil exactly once, got %d: %+v", len(got), got)
	}
	unsub() // no-op, must not panic
	unsub()
}

func TestSubscriptionUnsubscribeStopsDelivery(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	loader := &fakeLoader{p: profileFixture(uid)}
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})

	store.fire(profileChanged(uid))
	unsub()
	if store.active() != 0 {
		t.Fatalf("store subscription not released")
	}

	fresh := profileFixture(uid)
	fresh.Revision = 99
	loader.set(fresh)
	store.fire(profileChanged(uid))
	if len(got) != 1 {
		t.Fatalf("delivery after unsubscribe: %d", len(got))
	}
}

func TestSubscriptionsAreIndependentPerStream(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	loader := &fakeLoader{p: profileFixture(uid)}
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var first, second []*types.IntegratedUserProfile
	unsub1 := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		first = append(first, p)
	})
	defer unsub1()
	unsub2 := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		second = append(second, p)
	})
	defer unsub2()

	// Both streams hold their own revision guard; one delivery each, not one
	// delivery total.
	store.fire(profileChanged(uid))
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("deliveries: want 1 per stream, got first=%d second=%d", len(first), len(second))
	}
}

func TestSubscriptionForgetAllowsRedelivery(t *testing.T) {
	uid := uuid.New()
	store := newFakeDocStore()
	loader := &fakeLoader{p: profileFixture(uid)}
	svc, err := NewSubscriptionService(store, loader, testLogger(t))
	if err != nil {
		t.Fatalf("NewSubscriptionService: %v", err)
	}

	var got []*types.IntegratedUserProfile
	unsub := svc.SubscribeToProfile(context.Background(), uid, func(p *types.IntegratedUserProfile) {
		got = append(got, p)
	})
	defer unsub()

	store.fire(profileChanged(uid))
	store.fire(profileChanged(uid))
	if len(got) != 1 {
		t.Fatalf("precondition: want 1 delivery, got %d", len(got))
	}

	// Reset clears guard state; the same revision counts as fresh again.
	svc.Forget(uid)
	store.fire(profileChanged(uid))
	if len(got) != 2 {
		t.Fatalf("forgotten guard still suppressed delivery: %d", len(got))
	}
}
