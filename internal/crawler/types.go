// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// Engine identifies which search variant a job runs against.
type Engine string

// Engines accepted on job submission.
const (
	EngineBing    Engine = "bing"
	EngineGoogle  Engine = "google"
	EngineGeneric Engine = "generic"
)

// Valid reports whether the engine is a known variant.
func (e Engine) Valid() bool {
	switch e {
	case EngineBing, EngineGoogle, EngineGeneric:
		return true
	}
	return false
}

// CrawlJob is the unit of work consumed at most once by a worker.
type CrawlJob struct {
	ID        string            `json:"id"`
	Keyword   string            `json:"keyword"`
	Engine    Engine            `json:"engine"`
	Selectors map[string]string `json:"selectors,omitempty"`
}

// SearchResult is one organic result from a results page.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SerpData is the structured content of one results page.
type SerpData struct {
	Results         []SearchResult `json:"results"`
	PeopleAlsoAsk   []string       `json:"people_also_ask,omitempty"`
	RelatedSearches []string       `json:"related_searches,omitempty"`
	FeaturedSnippet string         `json:"featured_snippet,omitempty"`
	TotalResults    string         `json:"total_results,omitempty"`
}

// MaxSerpResults caps how many organic results one attempt may return.
const MaxSerpResults = 10

// Truncate enforces the result cap in place and returns the receiver.
func (s *SerpData) Truncate() *SerpData {
	if len(s.Results) > MaxSerpResults {
		s.Results = s.Results[:MaxSerpResults]
	}
	return s
}

// ImageRef is one harvested page image.
type ImageRef struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// WebsiteData is the deep-extraction record for one fetched page.
type WebsiteData struct {
	URL             string     `json:"url"`
	FinalURL        string     `json:"final_url"`
	Title           string     `json:"title,omitempty"`
	HTML            string     `json:"-"`
	MainText        string     `json:"main_text,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	MetaKeywords    string     `json:"meta_keywords,omitempty"`
	MetaAuthor      string     `json:"meta_author,omitempty"`
	MetaDate        string     `json:"meta_date,omitempty"`
	OGTitle         string     `json:"og_title,omitempty"`
	OGDescription   string     `json:"og_description,omitempty"`
	OGImage         string     `json:"og_image,omitempty"`
	OGType          string     `json:"og_type,omitempty"`
	SchemaOrg       []string   `json:"schema_org,omitempty"`
	Emails          []string   `json:"emails,omitempty"`
	PhoneNumbers    []string   `json:"phone_numbers,omitempty"`
	Images          []ImageRef `json:"images,omitempty"`
	OutboundLinks   []string   `json:"outbound_links,omitempty"`
	WordCount       int        `json:"word_count"`
	HTMLSize        int        `json:"html_size"`
}

// FailureReason classifies a soft terminal search outcome. These are values
// the caller branches on, not errors.
type FailureReason string

// Soft failure classifications.
const (
	FailureNone              FailureReason = ""
	FailureChallengeDetected FailureReason = "challenge_detected"
	FailurePageTooSmall      FailureReason = "page_too_small"
	FailureNoResults         FailureReason = "no_results_found"
)

// Outcome is the terminal value of one Search Automation run.
type Outcome struct {
	Serp SerpData
	// Method records extraction provenance: "dom", "script_fallback",
	// "js_context", "landmarks", "selector_map", "title".
	Method  string
	Failure FailureReason
}

// Failed reports whether the run ended in a classified soft failure.
func (o Outcome) Failed() bool {
	return o.Failure != FailureNone
}

// TaskStatus is the persisted lifecycle state of a crawl task.
type TaskStatus string

// Task status values written to the task store.
const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskRecord is persisted once, at job completion.
type TaskRecord struct {
	ID              string     `json:"id"`
	Keyword         string     `json:"keyword"`
	Engine          Engine     `json:"engine"`
	Status          TaskStatus `json:"status"`
	ResultsJSON     string     `json:"results_json,omitempty"`
	ExtractedText   string     `json:"extracted_text,omitempty"`
	FirstPageHTML   string     `json:"first_page_html,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	MetaKeywords    string     `json:"meta_keywords,omitempty"`
	MetaAuthor      string     `json:"meta_author,omitempty"`
	MetaDate        string     `json:"meta_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TaskSummary is the trimmed listing row returned by the tasks index.
type TaskSummary struct {
	ID            string     `json:"id"`
	Keyword       string     `json:"keyword"`
	Engine        Engine     `json:"engine"`
	Status        TaskStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResultsJSON   string     `json:"results_json,omitempty"`
	ExtractedText string     `json:"extracted_text,omitempty"`
}

// FailureEvent is one structured entry in the failure log.
type FailureEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Engine    Engine        `json:"engine"`
	Keyword   string        `json:"keyword"`
	Reason    FailureReason `json:"reason"`
	HTMLLen   int           `json:"html_len"`
}
