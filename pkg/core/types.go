// pkg/core/types.go
package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"slices"

	"github.com/google/uuid"
)

// Vec3 is a position in game-world coordinates (meters).
type Vec3 [3]float32

// ParseBase64GUID decodes the 24 character base64 guid form used by
// pack files.
func ParseBase64GUID(s string) (uuid.UUID, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(raw)
}

// Base64GUID encodes id in the pack file form.
func Base64GUID(id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// CategoryID is the stable handle of a category inside a pack.
type CategoryID uint16

// GUIDSet is a set of marker/trail guids. It serializes as a sorted JSON array.
type GUIDSet map[uuid.UUID]struct{}

// Add inserts id and reports whether it was newly added.
func (s *GUIDSet) Add(id uuid.UUID) bool {
	if *s == nil {
		*s = make(GUIDSet)
	}
	if _, ok := (*s)[id]; ok {
		return false
	}
	(*s)[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s GUIDSet) Remove(id uuid.UUID) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Has reports whether id is in the set.
func (s GUIDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in byte order.
func (s GUIDSet) Sorted() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return out
}

func (s GUIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *GUIDSet) UnmarshalJSON(data []byte) error {
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = make(GUIDSet, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}
	return nil
}

// CategorySet is a set of category ids. It serializes as a sorted JSON array.
type CategorySet map[CategoryID]struct{}

// Add inserts id and reports whether it was newly added.
func (s *CategorySet) Add(id CategoryID) bool {
	if *s == nil {
		*s = make(CategorySet)
	}
	if _, ok := (*s)[id]; ok {
		return false
	}
	(*s)[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s CategorySet) Remove(id CategoryID) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Has reports whether id is in the set.
func (s CategorySet) Has(id CategoryID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s CategorySet) Sorted() []CategoryID {
	out := make([]CategoryID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s CategorySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *CategorySet) UnmarshalJSON(data []byte) error {
	var ids []CategoryID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = make(CategorySet, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}
	return nil
}
