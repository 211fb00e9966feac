package trainer

import (
	"encoding/json"
	"math"

	"github.com/replytrainer/pkg/models"
)

// FeedbackItem is one rating submitted by the caller
type FeedbackItem struct {
	CandidateIndex *int        `json:"candidateIndex"`
	Candidate      string      `json:"candidate"`
	Rating         interface{} `json:"rating"`
	Tags           []string    `json:"tags"`
	Comment        *string     `json:"comment"`
}

// Record converts the item into a persistable record for sessionID
func (f FeedbackItem) Record(sessionID string) models.FeedbackRecord {
	rec := models.FeedbackRecord{
		SessionID:      sessionID,
		CandidateIndex: f.CandidateIndex,
		CandidateText:  f.Candidate,
		Rating:         f.Rating,
		Tags:           append([]string{}, f.Tags...),
	}
	if f.Comment != nil {
		rec.Comment = *f.Comment
	}
	return rec
}

// DecodeFeedbackItem reads an item field by field. A field with the wrong
// type falls back to its zero value instead of rejecting the item.
func DecodeFeedbackItem(raw json.RawMessage) FeedbackItem {
	var item FeedbackItem
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return item
	}

	if v, ok := fields["candidateIndex"]; ok {
		var n *float64
		if json.Unmarshal(v, &n) == nil && n != nil && *n == math.Trunc(*n) && *n >= math.MinInt32 && *n <= math.MaxInt32 {
			idx := int(*n)
			item.CandidateIndex = &idx
		}
	}

	if v, ok := fields["candidate"]; ok {
		_ = json.Unmarshal(v, &item.Candidate)
	}

	if v, ok := fields["rating"]; ok {
		var rating interface{}
		if json.Unmarshal(v, &rating) == nil {
			item.Rating = rating
		}
	}

	if v, ok := fields["tags"]; ok {
		var tags []json.RawMessage
		if json.Unmarshal(v, &tags) == nil {
			for _, t := range tags {
				var tag string
				if json.Unmarshal(t, &tag) == nil {
					item.Tags = append(item.Tags, tag)
				}
			}
		}
	}

	if v, ok := fields["comment"]; ok {
		var comment *string
		if json.Unmarshal(v, &comment) == nil {
			item.Comment = comment
		}
	}

	return item
}

// DecodeFeedbackItems decodes a batch leniently. A non-array batch is empty.
func DecodeFeedbackItems(raw json.RawMessage) []FeedbackItem {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]FeedbackItem, 0, len(items))
	for _, item := range items {
		out = append(out, DecodeFeedbackItem(item))
	}
	return out
}
