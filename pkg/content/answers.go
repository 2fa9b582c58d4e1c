package content

import (
	"context"
	"fmt"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// RecordAnswer appends a learner answer to a state of an exploration
// version.
func (s *Service) RecordAnswer(ctx context.Context, expID string, version int, stateName string, answer SubmittedAnswer) error {
	exp, err := s.explorationAt(ctx, expID, version)
	if err != nil {
		return err
	}
	st, ok := exp.States[stateName]
	if !ok {
		return apperr.InvalidInput("Exploration '%s' does not have '%s' state.", expID, stateName)
	}

	id := stateAnswersID(expID, version, stateName)
	rec, err := getEntity[StateAnswers](ctx, s.store, KindStateAnswers, id)
	if apperr.IsNotFound(err) {
		rec = &StateAnswers{
			ExplorationID:      expID,
			ExplorationVersion: version,
			StateName:          stateName,
			InteractionID:      st.InteractionID,
		}
	} else if err != nil {
		return err
	}
	if answer.InteractionID == "" {
		answer.InteractionID = st.InteractionID
	}
	if answer.Params == nil {
		answer.Params = map[string]any{}
	}
	rec.Answers = append(rec.Answers, answer)
	return putEntity(ctx, s.store, KindStateAnswers, id, rec)
}

// ExtractAnswers returns the first n answers submitted to a state, in
// submission order. n of zero returns all of them.
func (s *Service) ExtractAnswers(ctx context.Context, expID string, version int, stateName string, n int) ([]SubmittedAnswer, error) {
	exp, err := s.explorationAt(ctx, expID, version)
	if err != nil {
		return nil, err
	}
	if _, ok := exp.States[stateName]; !ok {
		return nil, apperr.InvalidInput("Exploration '%s' does not have '%s' state.", expID, stateName)
	}

	rec, err := getEntity[StateAnswers](ctx, s.store, KindStateAnswers, stateAnswersID(expID, version, stateName))
	if apperr.IsNotFound(err) {
		return nil, fmt.Errorf(
			"No state answer exists for the given exp_id: %s, exp_version: %d and state_name: %s",
			expID, version, stateName)
	}
	if err != nil {
		return nil, err
	}

	answers := rec.Answers
	if n > 0 && n < len(answers) {
		answers = answers[:n]
	}
	if answers == nil {
		answers = []SubmittedAnswer{}
	}
	return answers, nil
}
