package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Target addresses what a subscription watches: one document when DocID is
// set, otherwise every document in the collection, optionally filtered by
// conjunctive conditions evaluated against the payload at event time.
type Target struct {
	Path  string
	DocID string
	Conds []Condition
}

type subscription struct {
	id       uint64
	target   Target
	onChange func(ev ChangeEvent)
	onError  func(err error)
}

type subscriptionSet struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*subscription
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{subs: make(map[uint64]*subscription)}
}

func (ss *subscriptionSet) add(sub *subscription) uint64 {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.next++
	sub.id = ss.next
	ss.subs[sub.id] = sub
	return sub.id
}

func (ss *subscriptionSet) remove(id uint64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.subs, id)
}

func (ss *subscriptionSet) snapshot() []*subscription {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]*subscription, 0, len(ss.subs))
	for _, sub := range ss.subs {
		out = append(out, sub)
	}
	return out
}

// Subscribe registers for change events on the target. The returned
// unsubscribe is synchronous and idempotent: once it returns, no further
// callbacks are delivered (an already in-flight notification may still
// land, there is no drain guarantee). Errors hit onError without tearing
// the subscription down.
func (s *gormStore) Subscribe(target Target, onChange func(ev ChangeEvent), onError func(err error)) (func(), error) {
	const op = "subscribe"
	if onChange == nil {
		return nil, validationErr(op, target.Path, target.DocID, fmt.Errorf("onChange callback required"))
	}
	if err := validateCollectionPath(target.Path); err != nil {
		return nil, validationErr(op, target.Path, target.DocID, err)
	}
	if target.DocID != "" {
		if err := validateDocID(target.DocID); err != nil {
			return nil, validationErr(op, target.Path, target.DocID, err)
		}
	}
	for _, c := range target.Conds {
		if _, _, err := conditionSQL(c); err != nil {
			return nil, validationErr(op, target.Path, target.DocID, err)
		}
	}

	if onError == nil {
		onError = func(error) {}
	}
	id := s.subs.add(&subscription{target: target, onChange: onChange, onError: onError})

	var once sync.Once
	return func() {
		once.Do(func() { s.subs.remove(id) })
	}, nil
}

// dispatch matches one committed change against every live subscription.
// Condition targets re-read the document to evaluate the filter on current
// data; a read failure is reported to that subscriber only.
func (s *gormStore) dispatch(ev ChangeEvent) {
	for _, sub := range s.subs.snapshot() {
		t := sub.target
		if t.Path != ev.Path {
			continue
		}
		if t.DocID != "" && t.DocID != ev.DocID {
			continue
		}
		if len(t.Conds) > 0 && ev.Kind != ChangeDeleted {
			matched, err := s.matchConds(ev, t.Conds)
			if err != nil {
				sub.onError(err)
				continue
			}
			if !matched {
				continue
			}
		}
		sub.onChange(ev)
	}
}

func (s *gormStore) matchConds(ev ChangeEvent, conds []Condition) (bool, error) {
	doc, err := s.Read(context.Background(), ev.Path, ev.DocID)
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return false, validationErr("subscribe", ev.Path, ev.DocID, err)
	}
	for _, c := range conds {
		ok, err := evalCondition(payload, c)
		if err != nil {
			return false, validationErr("subscribe", ev.Path, ev.DocID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evalCondition mirrors conditionSQL semantics in Go for event-time
// filtering. A missing field never matches.
func evalCondition(payload map[string]interface{}, c Condition) (bool, error) {
	got, ok := payload[c.Field]
	if !ok {
		return false, nil
	}
	switch want := c.Value.(type) {
	case string:
		s, ok := got.(string)
		if !ok {
			return false, nil
		}
		return compareStrings(s, c.Op, want)
	case bool:
		b, ok := got.(bool)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case OpEq:
			return b == want, nil
		case OpNeq:
			return b != want, nil
		default:
			return false, fmt.Errorf("operator %q not supported for booleans", c.Op)
		}
	case int, int32, int64, float32, float64:
		f, ok := got.(float64)
		if !ok {
			return false, nil
		}
		return compareFloats(f, c.Op, toFloat(want))
	default:
		return false, fmt.Errorf("unsupported condition value type %T", c.Value)
	}
}

func compareStrings(got, op, want string) (bool, error) {
	switch op {
	case OpEq:
		return got == want, nil
	case OpNeq:
		return got != want, nil
	case OpLt:
		return got < want, nil
	case OpLte:
		return got <= want, nil
	case OpGt:
		return got > want, nil
	case OpGte:
		return got >= want, nil
	default:
		return false, fmt.Errorf("unsupported condition operator %q", op)
	}
}

func compareFloats(got float64, op string, want float64) (bool, error) {
	switch op {
	case OpEq:
		return got == want, nil
	case OpNeq:
		return got != want, nil
	case OpLt:
		return got < want, nil
	case OpLte:
		return got <= want, nil
	case OpGt:
		return got > want, nil
	case OpGte:
		return got >= want, nil
	default:
		return false, fmt.Errorf("unsupported condition operator %q", op)
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
