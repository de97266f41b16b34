// Package domain holds the records that flow through the crawl pipeline.
package domain

import "time"

// Module tags.
const (
	ModuleMath    = "math"
	ModuleReading = "reading"
	ModuleWriting = "writing"
)

// Difficulty tags.
const (
	DifficultyEasy   = "E"
	DifficultyMedium = "M"
	DifficultyHard   = "H"
)

// ProgramSAT is the only program this crawler targets.
const ProgramSAT = "SAT"

// Extraction strategy names.
const (
	StrategyStructural  = "structural"
	StrategyPattern     = "pattern-mining"
	StrategyReadability = "readability-mining"
	StrategyImport      = "import"
)

// RawQuestion is one question as produced by a single extraction strategy.
type RawQuestion struct {
	SourceURL          string
	Strategy           string
	QuestionText       string
	Options            []string
	CorrectAnswer      *string
	Explanation        *string
	ExternalID         string
	InferredDifficulty string
	InferredModule     string
	LowConfidence      bool
}

// Content is the question body stored by the sinks.
type Content struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Provenance records where and how a question was found.
type Provenance struct {
	SourceURL     string    `json:"source_url"`
	Strategy      string    `json:"strategy"`
	RunID         string    `json:"run_id"`
	ExtractedAt   time.Time `json:"extracted_at"`
	LowConfidence bool      `json:"low_confidence"`
}

// Question is the canonical, deduplicated record handed to sinks.
// QuestionID is the sink conflict key and is derived from DedupKey.
type Question struct {
	QuestionID       string     `json:"question_id"`
	DedupKey         string     `json:"dedup_key"`
	Module           string     `json:"module"`
	Difficulty       string     `json:"difficulty"`
	SkillCode        string     `json:"skill_cd"`
	SkillDescription string     `json:"skill_desc"`
	Content          Content    `json:"content"`
	Program          string     `json:"program"`
	Provenance       Provenance `json:"provenance"`
	Active           bool       `json:"active"`
}
