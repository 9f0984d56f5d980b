// Package recipients validates and normalizes trigger addressing payloads.
package recipients

import (
	"regexp"

	"github.com/dukex/herald/pkg/models"
)

// subscriberIDPattern matches subscriber ids and topic keys.
var subscriberIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:@+|=\-]{1,256}$`)

// Result splits a recipients payload into normalized valid entries and the
// raw entries that failed validation.
type Result struct {
	Valid   []models.Recipient
	Invalid []any
}

// Parse validates input, which may be a single recipient or a list of them.
// Invalid entries are returned as data; Parse never fails.
func Parse(input any) Result {
	if input == nil {
		return Result{}
	}

	items, isList := asList(input)
	if !isList {
		items = []any{input}
	}

	// Fast path: the whole input is valid, no per-entry bookkeeping needed.
	if valid, ok := parseAll(items); ok {
		return Result{Valid: valid}
	}

	result := Result{}

	for _, item := range items {
		recipient, ok := parseOne(item)
		if !ok {
			result.Invalid = append(result.Invalid, item)

			continue
		}

		result.Valid = append(result.Valid, recipient)
	}

	return result
}

// IsValidSubscriberID reports whether id can address a subscriber or topic.
func IsValidSubscriberID(id string) bool {
	return subscriberIDPattern.MatchString(id)
}

func parseAll(items []any) ([]models.Recipient, bool) {
	valid := make([]models.Recipient, 0, len(items))

	for _, item := range items {
		recipient, ok := parseOne(item)
		if !ok {
			return nil, false
		}

		valid = append(valid, recipient)
	}

	return valid, true
}

func parseOne(item any) (models.Recipient, bool) {
	switch value := item.(type) {
	case string:
		if !IsValidSubscriberID(value) {
			return models.Recipient{}, false
		}

		return models.Recipient{Kind: models.RecipientSubscriber, Key: value, Raw: value}, true
	case map[string]any:
		return parseObject(value)
	case models.Subscriber:
		return parseObject(value.Object())
	case *models.Subscriber:
		if value == nil {
			return models.Recipient{}, false
		}

		return parseObject(value.Object())
	default:
		return models.Recipient{}, false
	}
}

func parseObject(object map[string]any) (models.Recipient, bool) {
	if subscriberID, ok := object["subscriberId"].(string); ok {
		if !IsValidSubscriberID(subscriberID) {
			return models.Recipient{}, false
		}

		return models.Recipient{Kind: models.RecipientSubscriber, Key: subscriberID, Raw: object}, true
	}

	if topicKey, ok := object["topicKey"].(string); ok {
		if !IsValidSubscriberID(topicKey) {
			return models.Recipient{}, false
		}

		return models.Recipient{Kind: models.RecipientTopic, Key: topicKey, Raw: object}, true
	}

	return models.Recipient{}, false
}

func asList(input any) ([]any, bool) {
	switch list := input.(type) {
	case []any:
		return list, true
	case []string:
		items := make([]any, len(list))
		for i, id := range list {
			items[i] = id
		}

		return items, true
	case []map[string]any:
		items := make([]any, len(list))
		for i, object := range list {
			items[i] = object
		}

		return items, true
	default:
		return nil, false
	}
}
