// internal/database/memory.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

type memDoc struct {
	body map[string]any
	seq  uint64 // write order, mirrors updated_at ordering of the Postgres store
}

// MemoryStore is a thread-safe in-process Store used by tests and local runs.
type MemoryStore struct {
	mu   sync.Mutex
	seq  uint64
	docs map[string]map[string]*memDoc
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]*memDoc)}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string, dest any) error {
	s.mu.Lock()
	d, ok := s.docs[collection][id]
	var data []byte
	var err error
	if ok {
		data, err = json.Marshal(d.body)
	}
	s.mu.Unlock()

	if !ok {
		return notFound(collection, id)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *MemoryStore) Set(_ context.Context, collection, id string, doc any, merge bool) error {
	body, err := toObject(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]*memDoc)
		s.docs[collection] = coll
	}
	s.seq++
	if existing, ok := coll[id]; ok && merge {
		for k, v := range body {
			existing.body[k] = v
		}
		existing.seq = s.seq
		return nil
	}
	coll[id] = &memDoc{body: body, seq: s.seq}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, collection, field string, op Op, value any) ([]json.RawMessage, error) {
	if err := checkOp(op); err != nil {
		return nil, err
	}
	want, err := normalize(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}
	path := fieldPath(field)

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*memDoc
	for _, d := range s.docs[collection] {
		got, ok := lookup(d.body, path)
		if !ok {
			continue
		}
		if op == OpEqual && reflect.DeepEqual(got, want) {
			matches = append(matches, d)
			continue
		}
		if op == OpArrayContains {
			arr, isArr := got.([]any)
			if !isArr {
				continue
			}
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					matches = append(matches, d)
					break
				}
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	out := make([]json.RawMessage, 0, len(matches))
	for _, d := range matches {
		data, err := json.Marshal(d.body)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// toObject round-trips doc through JSON so the store never aliases caller memory.
func toObject(doc any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	return obj, nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

func lookup(body map[string]any, path []string) (any, bool) {
	var cur any = body
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
