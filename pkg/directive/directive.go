// Package directive finds data-request directives embedded in model replies.
//
// A directive is a JSON object of the form
//
//	{"need_external_data": true, "query": "current weather in Paris"}
//
// which a model emits, possibly inside a markdown code fence or surrounded by
// prose, when it needs data it does not have. Extraction never fails: text
// that does not carry a well-formed, truthy directive simply has none.
package directive

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Key is the field a reply must contain to be considered a directive.
const Key = "need_external_data"

// Directive is a parsed request for external data.
type Directive struct {
	NeedExternalData bool   `json:"need_external_data"`
	Query            string `json:"query"`
}

// fencedBlockRegex matches the first fenced block whose body is a JSON
// object, optionally labeled json. Non-greedy so that a second block later
// in the reply is not swallowed.
var fencedBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// Extract returns the directive carried by reply, if any.
//
// A fenced block takes priority; when one is present its body is the only
// candidate. Otherwise the first JSON object in the text that mentions Key is
// used. The candidate must parse and its Key field must be truthy.
func Extract(reply string) (Directive, bool) {
	candidate, ok := candidate(reply)
	if !ok {
		return Directive{}, false
	}

	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() || !truthy(parsed.Get(Key)) {
		return Directive{}, false
	}

	return Directive{
		NeedExternalData: true,
		Query:            strings.TrimSpace(parsed.Get("query").String()),
	}, true
}

func candidate(reply string) (string, bool) {
	if m := fencedBlockRegex.FindStringSubmatch(reply); m != nil {
		if !gjson.Valid(m[1]) {
			return "", false
		}
		return m[1], true
	}

	if !strings.Contains(reply, `"`+Key+`"`) {
		return "", false
	}
	return firstObjectWithKey(reply)
}

// maxAttempts bounds the decode attempts for one reply. Each attempt may read
// to the end of the text.
const maxAttempts = 64

// firstObjectWithKey returns the smallest complete JSON object enclosing an
// occurrence of Key whose top level contains Key. Occurrences are tried in
// order, and for each one the opening braces before it are tried innermost
// first. Trailing prose after the object is ignored.
func firstObjectWithKey(text string) (string, bool) {
	quoted := `"` + Key + `"`
	attempts := 0
	lastBrace := -1
	for offset := 0; attempts < maxAttempts; {
		at := strings.Index(text[offset:], quoted)
		if at < 0 {
			return "", false
		}
		at += offset
		if b := strings.LastIndexByte(text[offset:at], '{'); b >= 0 {
			lastBrace = offset + b
		}

		for i := lastBrace; i >= 0 && attempts < maxAttempts; i = strings.LastIndexByte(text[:i], '{') {
			attempts++
			dec := json.NewDecoder(strings.NewReader(text[i:]))
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				continue
			}
			if gjson.GetBytes(raw, Key).Exists() {
				return string(raw), true
			}
		}
		offset = at + len(quoted)
	}
	return "", false
}

// truthy mirrors loose truthiness: false, null, 0, "" and absent are false.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		return true
	default:
		return false
	}
}
