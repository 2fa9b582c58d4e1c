package content

import (
	"fmt"
	"time"
)

// Interaction ids used by seeded content.
const (
	InteractionTextInput      = "TextInput"
	InteractionMultipleChoice = "MultipleChoiceInput"
	InteractionNumericInput   = "NumericInput"
	InteractionContinue       = "Continue"
	InteractionEndExploration = "EndExploration"
)

// DefaultInitStateName is the first state of new explorations.
const DefaultInitStateName = "Introduction"

// State is one card of an exploration.
type State struct {
	Content       string `json:"content"`
	InteractionID string `json:"interaction_id"`
}

// Exploration is a versioned interactive lesson.
type Exploration struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Category      string           `json:"category"`
	Objective     string           `json:"objective"`
	LanguageCode  string           `json:"language_code"`
	OwnerID       string           `json:"owner_id"`
	InitStateName string           `json:"init_state_name"`
	States        map[string]State `json:"states"`
	Version       int              `json:"version"`
	Published     bool             `json:"published"`
}

// SnapshotID returns the snapshot key of an entity version.
func SnapshotID(id string, version int) string {
	return fmt.Sprintf("%s-%d", id, version)
}

// SnapshotContent is the full exploration as of one version.
type SnapshotContent struct {
	ID          string      `json:"id"`
	Exploration Exploration `json:"exploration"`
}

// SnapshotMetadata describes the commit that produced a version.
type SnapshotMetadata struct {
	ID            string    `json:"id"`
	CommitterID   string    `json:"committer_id"`
	CommitType    string    `json:"commit_type"`
	CommitMessage string    `json:"commit_message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Collection groups explorations into a learning path.
type Collection struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Category       string   `json:"category"`
	Objective      string   `json:"objective"`
	OwnerID        string   `json:"owner_id"`
	ExplorationIDs []string `json:"exploration_ids"`
	Version        int      `json:"version"`
	Published      bool     `json:"published"`
	CommunityOwned bool     `json:"community_owned"`
}

// Topic groups stories and skills.
type Topic struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	AbbreviatedName    string   `json:"abbreviated_name"`
	URLFragment        string   `json:"url_fragment"`
	Description        string   `json:"description"`
	CanonicalStoryIDs  []string `json:"canonical_story_ids"`
	AdditionalStoryIDs []string `json:"additional_story_ids"`
	SkillIDs           []string `json:"skill_ids"`
	Published          bool     `json:"published"`
	Version            int      `json:"version"`
}

// TopicSummary is the denormalized view of a topic.
type TopicSummary struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	URLFragment          string    `json:"url_fragment"`
	CanonicalStoryCount  int       `json:"canonical_story_count"`
	AdditionalStoryCount int       `json:"additional_story_count"`
	TotalSkillCount      int       `json:"total_skill_count"`
	Version              int       `json:"version"`
	ComputedAt           time.Time `json:"computed_at"`
}

// StoryNode is a chapter of a story backed by an exploration.
type StoryNode struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ExplorationID string `json:"exploration_id"`
}

// Story is an ordered sequence of chapters within a topic.
type Story struct {
	ID          string      `json:"id"`
	TopicID     string      `json:"topic_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Nodes       []StoryNode `json:"nodes"`
}

// Skill is an assessable learning outcome.
type Skill struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}

// Question practices one or more skills.
type Question struct {
	ID            string   `json:"id"`
	SkillIDs      []string `json:"skill_ids"`
	Content       string   `json:"content"`
	InteractionID string   `json:"interaction_id"`
	LanguageCode  string   `json:"language_code"`
}

// Classroom is a published set of topics.
type Classroom struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URLFragment string   `json:"url_fragment"`
	TopicIDs    []string `json:"topic_ids"`
	Published   bool     `json:"published"`
}

// BlogPost is an authored article.
type BlogPost struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Tags        []string   `json:"tags"`
	URLFragment string     `json:"url_fragment"`
	PublishedOn *time.Time `json:"published_on"`
	LastUpdated time.Time  `json:"last_updated"`
}

// ExplorationOpportunity is a translation opportunity for a story chapter.
type ExplorationOpportunity struct {
	ID                                 string    `json:"id"`
	TopicID                            string    `json:"topic_id"`
	TopicName                          string    `json:"topic_name"`
	StoryID                            string    `json:"story_id"`
	StoryTitle                         string    `json:"story_title"`
	ChapterTitle                       string    `json:"chapter_title"`
	ContentCount                       int       `json:"content_count"`
	IncompleteTranslationLanguageCodes []string  `json:"incomplete_translation_language_codes"`
	CreatedAt                          time.Time `json:"created_at"`
}

// SubmittedAnswer is one learner answer to a state.
type SubmittedAnswer struct {
	Answer                       any            `json:"answer"`
	InteractionID                string         `json:"interaction_id"`
	AnswerGroupIndex             int            `json:"answer_group_index"`
	RuleSpecIndex                int            `json:"rule_spec_index"`
	ClassificationCategorization string         `json:"classification_categorization"`
	Params                       map[string]any `json:"params"`
	SessionID                    string         `json:"session_id"`
	TimeSpentInSec               float64        `json:"time_spent_in_sec"`
}

// StateAnswers holds every answer submitted to one state of one version.
type StateAnswers struct {
	ExplorationID      string            `json:"exploration_id"`
	ExplorationVersion int               `json:"exploration_version"`
	StateName          string            `json:"state_name"`
	InteractionID      string            `json:"interaction_id"`
	Answers            []SubmittedAnswer `json:"submitted_answer_list"`
}

func stateAnswersID(expID string, version int, stateName string) string {
	return fmt.Sprintf("%s:%d:%s", expID, version, stateName)
}

// TopicSimilarities is the stored similarity matrix between categories.
type TopicSimilarities struct {
	Matrix map[string]map[string]float64 `json:"matrix"`
}
