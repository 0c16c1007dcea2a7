package analyzer

import (
	"bytes"
	"encoding/json"
	"strings"
)

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object or array.
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```JSON")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	obj := strings.Index(content, "{")
	arr := strings.Index(content, "[")
	start, closer := obj, "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		start, closer = arr, "]"
	}
	if start < 0 {
		return content
	}
	if end := strings.LastIndex(content, closer); end > start {
		content = content[start : end+1]
	}
	return content
}

// batchResult is the parsed output of one prompt for one batch.
type batchResult struct {
	results   []Result
	fallbacks int
}

func allFallback(n int) batchResult {
	return batchResult{results: Fallbacks(n), fallbacks: n}
}

// parseResponse maps a model response onto exactly n results for every
// prompt id. Anything that cannot be attributed to a prompt and article
// becomes a fallback record; nothing is ever dropped.
func parseResponse(text string, ids []string, n int) map[string]batchResult {
	out := make(map[string]batchResult, len(ids))
	for _, id := range ids {
		out[id] = allFallback(n)
	}

	raw := json.RawMessage(cleanJSON(text))
	if !json.Valid(raw) {
		return out
	}

	switch firstByte(raw) {
	case '[':
		if len(ids) == 1 {
			out[ids[0]] = decodeArray(raw, n)
		}
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return out
		}
		for _, id := range ids {
			if v, ok := keyed[id]; ok {
				out[id] = decodeArray(v, n)
			}
		}
		// A lone prompt answered with a single analysis object.
		if len(ids) == 1 {
			if _, ok := keyed[ids[0]]; !ok {
				if _, ok := keyed["sentiment"]; ok {
					out[ids[0]] = decodeArray(json.RawMessage("["+string(raw)+"]"), n)
				}
			}
		}
	}
	return out
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// decodeArray decodes up to n analyses. Items are placed by article_index
// when it is valid and unused, otherwise by position.
func decodeArray(raw json.RawMessage, n int) batchResult {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return allFallback(n)
	}

	type decoded struct {
		raw rawResult
		idx int
	}
	// The reply is one-based only when it is in 1..n and names article n;
	// a partial zero-based reply such as 1,2 for n=3 stays as is.
	var parsed []decoded
	inRange, sawLast := len(items) > 0, false
	for pos, item := range items {
		var r rawResult
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		idx := pos
		if r.ArticleIndex.set {
			idx = int(r.ArticleIndex.v)
		}
		if idx < 1 || idx > n {
			inRange = false
		}
		if idx == n {
			sawLast = true
		}
		parsed = append(parsed, decoded{raw: r, idx: idx})
	}
	oneBased := inRange && sawLast

	slots := make([]*Result, n)
	var unplaced []Result
	for _, d := range parsed {
		idx := d.idx
		if oneBased {
			idx--
		}
		res := d.raw.toResult(idx)
		if idx >= 0 && idx < n && slots[idx] == nil {
			slots[idx] = &res
			continue
		}
		unplaced = append(unplaced, res)
	}

	br := batchResult{results: make([]Result, n)}
	for i := range slots {
		if slots[i] == nil && len(unplaced) > 0 {
			r := unplaced[0]
			unplaced = unplaced[1:]
			slots[i] = &r
		}
		if slots[i] == nil {
			br.results[i] = Fallback(i)
			br.fallbacks++
			continue
		}
		br.results[i] = *slots[i]
		br.results[i].ArticleIndex = i
	}
	return br
}
