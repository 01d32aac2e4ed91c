package bundle

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/cellwire/cellgraph/reactive"
)

// Update merges src into target in place inside a single batch. For an
// object bundle this is an Object.assign: keys
// present in src are assigned (promoting/wiring as Set does), keys
// absent from src are deleted. For an array bundle this is set-semantics
// on snapshotted values: elements of target whose value doesn't occur
// anywhere in src are spliced out, and elements of src whose value
// doesn't already occur in target are pushed on — index position is not
// preserved, only set membership.
func Update(target *Bundle, src any) error {
	switch target.shape {
	case ObjectShape:
		return updateObject(target, src)
	case ArrayShape:
		return updateArray(target, src)
	default:
		return ErrWrongShape
	}
}

func updateObject(target *Bundle, src any) error {
	srcMap, err := asObjectValue(src)
	if err != nil {
		return err
	}
	reactive.BatchVoid(target.rt, func() {
		for key, c := range target.fields {
			if _, ok := srcMap[key]; !ok {
				delete(target.fields, key)
				c.ClearDef()
			}
		}
		for key, value := range srcMap {
			c, existed := target.fields[key]
			if !existed {
				c = reactive.New(target.rt, reactive.Options[any]{Value: nil})
				target.fields[key] = c
			}
			target.assignMember(c, value)
		}
		target.bumpAggregate()
	})
	return nil
}

func asObjectValue(src any) (map[string]any, error) {
	switch v := src.(type) {
	case map[string]any:
		return v, nil
	case *Bundle:
		if v.shape != ObjectShape {
			return nil, ErrWrongShape
		}
		snap := v.Snapshot()
		m, _ := snap.(map[string]any)
		return m, nil
	default:
		return nil, ErrWrongShape
	}
}

func asArrayValue(src any) ([]any, error) {
	switch v := src.(type) {
	case []any:
		return v, nil
	case *Bundle:
		if v.shape != ArrayShape {
			return nil, ErrWrongShape
		}
		snap := v.Snapshot()
		s, _ := snap.([]any)
		return s, nil
	default:
		return nil, ErrWrongShape
	}
}

// canonicalHash produces a stable membership key for a snapshotted value:
// encoding/json.Marshal sorts map keys, so two structurally-equal values
// always encode identically regardless of original key order, and hashing
// that encoding gives O(1) set membership tests instead of an O(n^2)
// pairwise deep-equality scan.
func canonicalHash(v any) (uint64, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

func updateArray(target *Bundle, src any) error {
	srcValues, err := asArrayValue(src)
	if err != nil {
		return err
	}

	srcHashes := make(map[uint64]struct{}, len(srcValues))
	for _, v := range srcValues {
		h, err := canonicalHash(v)
		if err != nil {
			return err
		}
		srcHashes[h] = struct{}{}
	}

	reactive.BatchVoid(target.rt, func() {
		for i := len(target.elems) - 1; i >= 0; i-- {
			c := target.elems[i]
			v, _ := c.Rv()
			h, err := canonicalHash(snapshotValue(v))
			if err != nil {
				continue
			}
			if _, keep := srcHashes[h]; !keep {
				target.elems = append(target.elems[:i], target.elems[i+1:]...)
				c.ClearDef()
			}
		}

		targetHashes := make(map[uint64]struct{}, len(target.elems))
		for _, c := range target.elems {
			v, _ := c.Rv()
			if h, err := canonicalHash(snapshotValue(v)); err == nil {
				targetHashes[h] = struct{}{}
			}
		}
		for _, v := range srcValues {
			h, err := canonicalHash(v)
			if err != nil {
				continue
			}
			if _, present := targetHashes[h]; present {
				continue
			}
			target.elems = append(target.elems, target.newMemberCell(v))
			targetHashes[h] = struct{}{}
		}

		target.syncLengthLocked()
		target.bumpAggregate()
	})
	return nil
}
