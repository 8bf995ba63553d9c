package docstore

import "encoding/json"

// canonical converts doc to plain JSON types (map[string]any, []any,
// float64, string, bool, nil) while keeping DeleteField markers in place.
func canonical(doc Document) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		cv, err := canonicalValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func canonicalValue(v any) (any, error) {
	switch t := v.(type) {
	case deleteSentinel:
		return t, nil
	case Document:
		return canonicalMap(t)
	case map[string]any:
		return canonicalMap(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// canonicalMap is canonical for nested objects, which are always stored as
// plain map[string]any.
func canonicalMap(m map[string]any) (any, error) {
	doc, err := canonical(m)
	if err != nil {
		return nil, err
	}
	return map[string]any(doc), nil
}

// mergeInto merges src into dst. Nested objects merge recursively, other
// values replace, DeleteField removes.
func mergeInto(dst, src Document) {
	for k, v := range src {
		if _, del := v.(deleteSentinel); del {
			delete(dst, k)
			continue
		}
		srcMap, srcIsMap := asDocument(v)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, dstIsMap := asDocument(dst[k])
		if !dstIsMap {
			dstMap = Document{}
		}
		mergeInto(dstMap, srcMap)
		dst[k] = map[string]any(dstMap)
	}
}

// setField assigns v at a nested field path, creating objects on the way.
func setField(doc Document, path []string, v any) {
	if len(path) == 1 {
		if _, del := v.(deleteSentinel); del {
			delete(doc, path[0])
			return
		}
		if m, ok := asDocument(v); ok {
			clean := Document{}
			mergeInto(clean, m)
			v = map[string]any(clean)
		}
		doc[path[0]] = v
		return
	}
	next, ok := asDocument(doc[path[0]])
	if !ok {
		if _, del := v.(deleteSentinel); del {
			return
		}
		next = Document{}
	}
	setField(next, path[1:], v)
	doc[path[0]] = map[string]any(next)
}

func asDocument(v any) (Document, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]any:
		return Document(t), true
	}
	return nil, false
}

// cloneDocument deep-copies a canonical document.
func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return map[string]any(cloneDocument(t))
	case map[string]any:
		return map[string]any(cloneDocument(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}
