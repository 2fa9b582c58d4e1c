package content

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// TranslationLanguageCodes are the languages content can be translated into.
var TranslationLanguageCodes = []string{"ar", "bn", "en", "es", "fr", "hi", "hi-en", "id", "pcm", "pt", "sw"}

// Topic returns a topic.
func (s *Service) Topic(ctx context.Context, id string) (*Topic, error) {
	t, err := getEntity[Topic](ctx, s.store, KindTopic, id)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("Topic with id %s does not exist.", id)
	}
	return t, err
}

// TopicExists reports whether a topic exists.
func (s *Service) TopicExists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, KindTopic, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking topic %s: %w", id, err)
	}
	return true, nil
}

// Topics returns every topic.
func (s *Service) Topics(ctx context.Context) ([]Topic, error) {
	return listEntities[Topic](ctx, s.store, KindTopic)
}

// TopicSummaries returns every topic summary.
func (s *Service) TopicSummaries(ctx context.Context) ([]TopicSummary, error) {
	return listEntities[TopicSummary](ctx, s.store, KindTopicSummary)
}

// Stories returns every story.
func (s *Service) Stories(ctx context.Context) ([]Story, error) {
	return listEntities[Story](ctx, s.store, KindStory)
}

// Skills returns every skill.
func (s *Service) Skills(ctx context.Context) ([]Skill, error) {
	return listEntities[Skill](ctx, s.store, KindSkill)
}

// Questions returns every question.
func (s *Service) Questions(ctx context.Context) ([]Question, error) {
	return listEntities[Question](ctx, s.store, KindQuestion)
}

// Classrooms returns every classroom.
func (s *Service) Classrooms(ctx context.Context) ([]Classroom, error) {
	return listEntities[Classroom](ctx, s.store, KindClassroom)
}

// Opportunities returns every exploration opportunity.
func (s *Service) Opportunities(ctx context.Context) ([]ExplorationOpportunity, error) {
	return listEntities[ExplorationOpportunity](ctx, s.store, KindOpportunity)
}

// TranslationOpportunities returns the opportunities still missing a
// translation into languageCode.
func (s *Service) TranslationOpportunities(ctx context.Context, languageCode string) ([]ExplorationOpportunity, error) {
	opps, err := s.Opportunities(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(opps, func(o ExplorationOpportunity, _ int) bool {
		return slices.Contains(o.IncompleteTranslationLanguageCodes, languageCode)
	}), nil
}

// SaveTopic stores a topic, bumping its version and refreshing its summary.
func (s *Service) SaveTopic(ctx context.Context, t Topic) (*Topic, error) {
	if t.Name == "" {
		return nil, apperr.InvalidInput("Topic name should be a non-empty string.")
	}
	if t.ID == "" {
		t.ID = newEntityID()
	}
	t.Version++
	if err := putEntity(ctx, s.store, KindTopic, t.ID, t); err != nil {
		return nil, err
	}
	if err := s.saveTopicSummary(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveStory stores a story.
func (s *Service) SaveStory(ctx context.Context, st Story) (*Story, error) {
	if st.ID == "" {
		st.ID = newEntityID()
	}
	if err := putEntity(ctx, s.store, KindStory, st.ID, st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) saveSkill(ctx context.Context, description string) (*Skill, error) {
	sk := Skill{ID: newEntityID(), Description: description, Explanation: "<p>Explanation for " + description + ".</p>"}
	if err := putEntity(ctx, s.store, KindSkill, sk.ID, sk); err != nil {
		return nil, err
	}
	return &sk, nil
}

func (s *Service) saveQuestion(ctx context.Context, content string, skillIDs ...string) error {
	q := Question{
		ID:            newEntityID(),
		SkillIDs:      skillIDs,
		Content:       content,
		InteractionID: InteractionTextInput,
		LanguageCode:  "en",
	}
	return putEntity(ctx, s.store, KindQuestion, q.ID, q)
}

func (s *Service) saveTopicSummary(ctx context.Context, t Topic) error {
	summary := TopicSummary{
		ID:                   t.ID,
		Name:                 t.Name,
		URLFragment:          t.URLFragment,
		CanonicalStoryCount:  len(t.CanonicalStoryIDs),
		AdditionalStoryCount: len(t.AdditionalStoryIDs),
		TotalSkillCount:      len(t.SkillIDs),
		Version:              t.Version,
		ComputedAt:           s.now().UTC(),
	}
	return putEntity(ctx, s.store, KindTopicSummary, t.ID, summary)
}

// RegenerateTopicSummaries recomputes the summary of every topic and
// returns how many were written.
func (s *Service) RegenerateTopicSummaries(ctx context.Context) (int, error) {
	topics, err := s.Topics(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range topics {
		if err := s.saveTopicSummary(ctx, t); err != nil {
			return 0, err
		}
	}
	s.logger.Info("regenerated topic summaries", "count", len(topics))
	return len(topics), nil
}

// RegenerateTopicOpportunities recreates the exploration opportunities of a
// topic's canonical stories and drops the topic's stale ones. Nothing is
// changed when a story or chapter fails to load. It returns the number of
// opportunities created.
func (s *Service) RegenerateTopicOpportunities(ctx context.Context, topicID string) (int, error) {
	t, err := s.Topic(ctx, topicID)
	if err != nil {
		return 0, err
	}

	var fresh []ExplorationOpportunity
	for _, storyID := range t.CanonicalStoryIDs {
		st, err := getEntity[Story](ctx, s.store, KindStory, storyID)
		if err != nil {
			return 0, fmt.Errorf("loading story %s: %w", storyID, err)
		}
		for _, node := range st.Nodes {
			exp, err := s.Exploration(ctx, node.ExplorationID)
			if err != nil {
				return 0, fmt.Errorf("loading chapter %s: %w", node.ID, err)
			}
			fresh = append(fresh, ExplorationOpportunity{
				ID:                                 exp.ID,
				TopicID:                            t.ID,
				TopicName:                          t.Name,
				StoryID:                            st.ID,
				StoryTitle:                         st.Title,
				ChapterTitle:                       node.Title,
				ContentCount:                       len(exp.States),
				IncompleteTranslationLanguageCodes: lo.Without(TranslationLanguageCodes, exp.LanguageCode),
				CreatedAt:                          s.now().UTC(),
			})
		}
	}

	existing, err := s.Opportunities(ctx)
	if err != nil {
		return 0, err
	}
	for _, opp := range fresh {
		if err := putEntity(ctx, s.store, KindOpportunity, opp.ID, opp); err != nil {
			return 0, err
		}
	}
	keep := lo.SliceToMap(fresh, func(o ExplorationOpportunity) (string, struct{}) { return o.ID, struct{}{} })
	for _, o := range existing {
		if o.TopicID != topicID {
			continue
		}
		if _, ok := keep[o.ID]; ok {
			continue
		}
		if err := s.store.Delete(ctx, KindOpportunity, o.ID); err != nil {
			return 0, fmt.Errorf("deleting opportunity %s: %w", o.ID, err)
		}
	}
	return len(fresh), nil
}

// GenerateDummyNewStructures creates a published topic with three skills,
// five questions and a canonical story whose chapters are demo
// explorations, then generates the story's translation opportunities.
func (s *Service) GenerateDummyNewStructures(ctx context.Context, committerID string) error {
	for _, id := range dummyStoryExplorationIDs {
		if err := s.loadDemoExploration(ctx, committerID, id); err != nil {
			return err
		}
	}

	skills := make([]*Skill, 0, 3)
	for i := 1; i <= 3; i++ {
		sk, err := s.saveSkill(ctx, fmt.Sprintf("Dummy Skill %d", i))
		if err != nil {
			return err
		}
		skills = append(skills, sk)
	}
	questionSkills := [][]*Skill{{skills[0]}, {skills[0]}, {skills[1]}, {skills[1]}, {skills[2]}}
	for i, qs := range questionSkills {
		ids := lo.Map(qs, func(sk *Skill, _ int) string { return sk.ID })
		if err := s.saveQuestion(ctx, fmt.Sprintf("<p>Dummy question %d</p>", i+1), ids...); err != nil {
			return err
		}
	}

	topicID := newEntityID()
	story := Story{
		TopicID:     topicID,
		Title:       "Help Jaime win the Arcade",
		Description: "Jaime wants to win the arcade.",
	}
	for i, expID := range dummyStoryExplorationIDs {
		story.Nodes = append(story.Nodes, StoryNode{
			ID:            fmt.Sprintf("node_%d", i+1),
			Title:         demoExplorations[expID].title,
			ExplorationID: expID,
		})
	}
	savedStory, err := s.SaveStory(ctx, story)
	if err != nil {
		return err
	}

	_, err = s.SaveTopic(ctx, Topic{
		ID:                topicID,
		Name:              "Dummy Topic 1",
		AbbreviatedName:   "dummy-one",
		URLFragment:       "dummy-topic-one",
		Description:       "Dummy topic description",
		CanonicalStoryIDs: []string{savedStory.ID},
		SkillIDs:          lo.Map(skills, func(sk *Skill, _ int) string { return sk.ID }),
		Published:         true,
	})
	if err != nil {
		return err
	}
	if _, err := s.RegenerateTopicOpportunities(ctx, topicID); err != nil {
		return err
	}
	s.logger.Info("generated dummy structures", "topic_id", topicID)
	return nil
}

// GenerateDummySkillData creates one skill practiced by fifteen questions.
func (s *Service) GenerateDummySkillData(ctx context.Context) error {
	sk, err := s.saveSkill(ctx, "Dummy Skill "+newEntityID()[:4])
	if err != nil {
		return err
	}
	for i := 1; i <= 15; i++ {
		if err := s.saveQuestion(ctx, fmt.Sprintf("<p>Dummy question %d for %s</p>", i, sk.Description), sk.ID); err != nil {
			return err
		}
	}
	s.logger.Info("generated dummy skill data", "skill_id", sk.ID)
	return nil
}

var dummyClassroomTopics = []string{"Addition", "Subtraction", "Multiplication"}

// GenerateDummyClassroom creates a published math classroom holding a
// topic per dummy subject.
func (s *Service) GenerateDummyClassroom(ctx context.Context) error {
	topicIDs := make([]string, 0, len(dummyClassroomTopics))
	for _, name := range dummyClassroomTopics {
		sk, err := s.saveSkill(ctx, name+" basics")
		if err != nil {
			return err
		}
		t, err := s.SaveTopic(ctx, Topic{
			Name:            name,
			AbbreviatedName: name,
			URLFragment:     slug(name),
			Description:     "Dummy " + name + " topic",
			SkillIDs:        []string{sk.ID},
			Published:       true,
		})
		if err != nil {
			return err
		}
		topicIDs = append(topicIDs, t.ID)
	}

	c := Classroom{
		ID:          newEntityID(),
		Name:        "math",
		URLFragment: "math",
		TopicIDs:    topicIDs,
		Published:   true,
	}
	if err := putEntity(ctx, s.store, KindClassroom, c.ID, c); err != nil {
		return err
	}
	s.logger.Info("generated dummy classroom", "classroom_id", c.ID)
	return nil
}
