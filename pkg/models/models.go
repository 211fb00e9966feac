package models

import (
	"time"
)

// SessionStatus is the lifecycle state of a trainer session
type SessionStatus string

const (
	// StatusAwaitingRating is written when the pipeline records a new session
	StatusAwaitingRating SessionStatus = "awaiting_rating"
	// StatusRated is written by the background job once feedback arrives
	StatusRated SessionStatus = "rated"
)

// GenerationRequest is the inbound payload for one pipeline run
type GenerationRequest struct {
	Context          map[string]interface{} `json:"context"`
	ProfileImageURLs []string               `json:"profileImageUrls"`
	ChatImageURLs    []string               `json:"chatImageUrls"`
}

// Normalized returns a copy with absent fields replaced by empty values
func (r GenerationRequest) Normalized() GenerationRequest {
	out := GenerationRequest{
		Context:          make(map[string]interface{}, len(r.Context)),
		ProfileImageURLs: append([]string{}, r.ProfileImageURLs...),
		ChatImageURLs:    append([]string{}, r.ChatImageURLs...),
	}
	for k, v := range r.Context {
		out.Context[k] = v
	}
	return out
}

// ExtractionResult aggregates the vision stage output.
// Captions are index-aligned with the profile images; ChatTexts only holds
// non-empty transcriptions.
type ExtractionResult struct {
	Captions  []string `json:"captions"`
	ChatTexts []string `json:"chatTexts"`
}

// Candidate is one suggested message
type Candidate struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// TrainerSession is the immutable snapshot of one pipeline run
type TrainerSession struct {
	ID               string                 `json:"id" db:"id"`
	Context          map[string]interface{} `json:"context" db:"context"`
	ProfileImageURLs []string               `json:"profileImageUrls" db:"profile_image_urls"`
	ChatImageURLs    []string               `json:"chatImageUrls" db:"chat_image_urls"`
	Captions         []string               `json:"captions" db:"captions"`
	ChatTexts        []string               `json:"chatTexts" db:"chat_texts"`
	Candidates       []Candidate            `json:"candidates" db:"candidates"`
	Status           SessionStatus          `json:"status" db:"status"`
	CreatedAt        time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time              `json:"updatedAt" db:"updated_at"`
}

// FeedbackRecord is one rating of one candidate
type FeedbackRecord struct {
	ID             string      `json:"id" db:"id"`
	SessionID      string      `json:"sessionId" db:"session_id"`
	CandidateIndex *int        `json:"candidateIndex" db:"candidate_index"`
	CandidateText  string      `json:"candidateText" db:"candidate_text"`
	Rating         interface{} `json:"rating" db:"rating"`
	Tags           []string    `json:"tags" db:"tags"`
	Comment        string      `json:"comment" db:"comment"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
}
