package main

import "github.com/mash-protocol/mash-panel/pkg/cbor"

// mergePatch applies patch to target with JSON Merge Patch (RFC 7386)
// semantics: a map patch merges key by key, a Null entry removes the key,
// and any other patch replaces the target.
func mergePatch(target, patch cbor.Value) cbor.Value {
	if patch.Kind() != cbor.KindMap {
		return patch
	}

	var pairs []cbor.Pair
	if target.Kind() == cbor.KindMap {
		pairs = append(pairs, target.Pairs()...)
	}

	for _, p := range patch.Pairs() {
		idx := -1
		for i := range pairs {
			if pairs[i].Key == p.Key {
				idx = i
				break
			}
		}

		if p.Value.IsNull() {
			if idx >= 0 {
				pairs = append(pairs[:idx], pairs[idx+1:]...)
			}
			continue
		}

		if idx >= 0 {
			pairs[idx].Value = mergePatch(pairs[idx].Value, p.Value)
		} else {
			pairs = append(pairs, cbor.Pair{Key: p.Key, Value: mergePatch(cbor.Null(), p.Value)})
		}
	}

	return cbor.Map(pairs...)
}
