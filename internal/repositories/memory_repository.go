package repositories

import (
	"context"
	"sync"

	"github.com/anonto42/event-fanout/backend/internal/models"
)

// MemoryStore is an in-process Store used for local development and tests.
// It also implements Mirror so trigger payloads can seed it.
type MemoryStore struct {
	mu          sync.Mutex
	preferences map[string]models.NotificationPreference
	aggregate   *models.AggregateIndex
	events      map[string]models.EventRecord
	activity    map[string]models.ActivityRecord
}

// Mirror receives the after-state of trigger payloads. Only backends that are
// not written by anything else (the memory store) need it.
type Mirror interface {
	PutPreference(pref models.NotificationPreference)
	DeletePreference(userID string)
	PutEvent(event models.EventRecord)
	DeleteEvent(eventID string)
	PutActivity(activity models.ActivityRecord)
	DeleteActivity(eventID string)
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		preferences: map[string]models.NotificationPreference{},
		events:      map[string]models.EventRecord{},
		activity:    map[string]models.ActivityRecord{},
	}
}

func clonePreference(p models.NotificationPreference) models.NotificationPreference {
	p.Tags = append([]string(nil), p.Tags...)
	p.DeviceTokens = append([]string(nil), p.DeviceTokens...)
	return p
}

func cloneEvent(e models.EventRecord) models.EventRecord {
	e.Tags = append([]string(nil), e.Tags...)
	return e
}

func cloneActivity(a models.ActivityRecord) models.ActivityRecord {
	a.SignupIDs = append([]string(nil), a.SignupIDs...)
	signups := make(map[string]models.SignupEntry, len(a.Signups))
	for k, v := range a.Signups {
		signups[k] = v
	}
	a.Signups = signups
	a.Comments = append([]models.CommentEntry(nil), a.Comments...)
	a.Subscribers = append([]models.Subscription(nil), a.Subscribers...)
	return a
}

func (s *MemoryStore) PutPreference(pref models.NotificationPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[pref.UserID] = clonePreference(pref)
}

func (s *MemoryStore) DeletePreference(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.preferences, userID)
}

func (s *MemoryStore) PutEvent(event models.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = cloneEvent(event)
}

func (s *MemoryStore) DeleteEvent(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	delete(s.activity, eventID)
}

func (s *MemoryStore) PutActivity(activity models.ActivityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[activity.EventID] = cloneActivity(activity)
}

func (s *MemoryStore) DeleteActivity(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activity, eventID)
}

// PutAggregate replaces the aggregate index document.
func (s *MemoryStore) PutAggregate(idx *models.AggregateIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregate = idx.Clone()
}

func (s *MemoryStore) GetPreference(_ context.Context, userID string) (*models.NotificationPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pref, ok := s.preferences[userID]
	if !ok {
		return nil, nil
	}
	pref = clonePreference(pref)
	return &pref, nil
}

func (s *MemoryStore) RemoveTokens(_ context.Context, tokens []string) (int, error) {
	dead := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		dead[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id, pref := range s.preferences {
		kept := make([]string, 0, len(pref.DeviceTokens))
		for _, t := range pref.DeviceTokens {
			if _, ok := dead[t]; !ok {
				kept = append(kept, t)
			}
		}
		if len(kept) != len(pref.DeviceTokens) {
			pref.DeviceTokens = kept
			s.preferences[id] = pref
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) GetAggregate(_ context.Context) (*models.AggregateIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aggregate == nil {
		return nil, nil
	}
	return s.aggregate.Clone(), nil
}

// UpdateAggregate holds the store lock for the whole read-modify-write,
// which serializes concurrent callers the way a transaction would.
func (s *MemoryStore) UpdateAggregate(_ context.Context, fn AggregateMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists := s.aggregate != nil
	idx := models.NewAggregateIndex()
	if exists {
		idx = s.aggregate.Clone()
	}
	write, err := fn(idx, exists)
	if err != nil || !write {
		return err
	}
	s.aggregate = idx.Clone()
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, eventID string) (*models.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, nil
	}
	event = cloneEvent(event)
	return &event, nil
}

func (s *MemoryStore) ListEventsByOwner(_ context.Context, ownerID string) ([]models.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []models.EventRecord
	for _, e := range s.events {
		if e.OwnerID == ownerID {
			events = append(events, cloneEvent(e))
		}
	}
	return events, nil
}

func (s *MemoryStore) GetActivity(_ context.Context, eventID string) (*models.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activity[eventID]
	if !ok {
		return nil, nil
	}
	activity = cloneActivity(activity)
	return &activity, nil
}

func (s *MemoryStore) ListActivitiesBySignup(_ context.Context, userID string) ([]models.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivityRecord
	for _, a := range s.activity {
		for _, id := range a.SignupIDs {
			if id == userID {
				out = append(out, cloneActivity(a))
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateSubscribers(_ context.Context, eventID string, fn SubscribersMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activity[eventID]
	if !ok {
		activity = *models.NewActivityRecord(eventID)
	}
	next, write := fn(append([]models.Subscription(nil), activity.Subscribers...))
	if !write {
		return nil
	}
	activity = cloneActivity(activity)
	activity.Subscribers = append([]models.Subscription{}, next...)
	s.activity[eventID] = activity
	return nil
}
