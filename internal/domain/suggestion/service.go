package suggestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrValidation wraps every request validation failure.
var ErrValidation = errors.New("validation failed")

// NoSuggestionsNotice is attached to an analysis whose agent result
// produced no reviewable cards.
const NoSuggestionsNotice = "no reviewable suggestions were produced"

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionModify  = "modify"
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type Service struct {
	tx          TxFunc
	analyses    AnalysisRepository
	suggestions SuggestionRepository
	normalizer  *Normalizer
	logger      zerolog.Logger
}

// NewService wires the repositories. tx must be the unit of work of the
// store behind them; nil selects RunMemoryTx.
func NewService(tx TxFunc, analyses AnalysisRepository, suggestions SuggestionRepository, normalizer *Normalizer, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = RunMemoryTx
	}
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Service{
		tx:          tx,
		analyses:    analyses,
		suggestions: suggestions,
		normalizer:  normalizer,
		logger:      logger.With().Str("component", "suggestion").Logger(),
	}
}

// -- Analysis --

// Analyze normalizes the agent result of one analysis run, records the run
// and replaces the session's suggestion list with the new cards.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	in := InputFromJSON(req.AgentResult)
	if in.Kind == InputAbsent {
		return nil, validationError("agent_result is required")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	items, readErr := s.normalizer.NormalizeChecked(in)
	for i, item := range items {
		item.Position = i
		item.OriginalContent = item.Content
	}

	a := &Analysis{
		SessionID:       sessionID,
		Transcript:      BuildTranscript(req.Notes, req.Turns),
		Patient:         req.Patient,
		RawPayload:      req.AgentResult,
		SuggestionCount: len(items),
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.analyses.Create(ctx, a); err != nil {
			return fmt.Errorf("create analysis: %w", err)
		}
		for _, item := range items {
			item.AnalysisID = a.ID
		}
		if err := s.suggestions.ReplaceForSession(ctx, sessionID, items); err != nil {
			return fmt.Errorf("store suggestions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{Analysis: a, Suggestions: items}
	if len(items) == 0 {
		result.Notice = NoSuggestionsNotice
		ev := s.logger.Warn().Str("session_id", sessionID).Str("analysis_id", a.ID.String())
		if readErr != nil {
			ev = ev.Str("reason", readErr.Error())
		}
		ev.Msg("analysis produced no reviewable suggestions")
	} else {
		s.logger.Info().
			Str("session_id", sessionID).
			Str("analysis_id", a.ID.String()).
			Int("suggestions", len(items)).
			Msg("analysis stored")
	}
	return result, nil
}

// Normalize is a stateless preview of what Analyze would store.
func (s *Service) Normalize(in RawInput) []*Suggestion {
	items, err := s.normalizer.NormalizeChecked(in)
	if err != nil {
		s.logger.Debug().Err(err).Msg("agent result not readable")
	}
	return items
}

func (s *Service) GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	return s.analyses.GetByID(ctx, id)
}

func (s *Service) ListAnalyses(ctx context.Context, sessionID string, limit, offset int) ([]*Analysis, int, error) {
	return s.analyses.ListBySession(ctx, sessionID, limit, offset)
}

// -- Suggestions --

func (s *Service) ListSuggestions(ctx context.Context, sessionID string) ([]*Suggestion, error) {
	return s.suggestions.ListBySession(ctx, sessionID)
}

func (s *Service) GetSuggestion(ctx context.Context, id string) (*Suggestion, error) {
	return s.suggestions.GetByID(ctx, id)
}

func (s *Service) GetActions(ctx context.Context, id string) ([]*SuggestionAction, error) {
	if _, err := s.suggestions.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.suggestions.GetActions(ctx, id)
}

func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return validationError("session_id is required")
	}
	return s.suggestions.DeleteBySession(ctx, sessionID)
}

// -- Review actions --

func (s *Service) ApproveSuggestion(ctx context.Context, id string, req ActionRequest) (*Suggestion, error) {
	return s.review(ctx, id, ActionApprove, req, func(sg *Suggestion) { sg.Status = StatusApproved })
}

func (s *Service) RejectSuggestion(ctx context.Context, id string, req ActionRequest) (*Suggestion, error) {
	return s.review(ctx, id, ActionReject, req, func(sg *Suggestion) { sg.Status = StatusRejected })
}

func (s *Service) ModifySuggestion(ctx context.Context, id string, req ActionRequest) (*Suggestion, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, validationError("content is required")
	}
	return s.review(ctx, id, ActionModify, req, func(sg *Suggestion) {
		sg.Content = content
		sg.Status = StatusModified
	})
}

// review applies one action and its audit row as a single unit. The status
// check is repeated by the repository's conditional Update, so of two racing
// terminal actions only one is stored.
func (s *Service) review(ctx context.Context, id, action string, req ActionRequest, apply func(*Suggestion)) (*Suggestion, error) {
	var sg *Suggestion
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		sg, err = s.suggestions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !reviewable(sg.Status) {
			return fmt.Errorf("%w: cannot %s a %s suggestion", ErrInvalidTransition, action, sg.Status)
		}

		previous := sg.Content
		apply(sg)
		if err := s.suggestions.Update(ctx, sg); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return fmt.Errorf("%w: suggestion %s was reviewed concurrently", ErrInvalidTransition, id)
			}
			return fmt.Errorf("update suggestion: %w", err)
		}

		audit := &SuggestionAction{
			SuggestionID: sg.ID,
			Action:       action,
			ClinicianID:  req.ClinicianID,
			Comment:      req.Comment,
		}
		if action == ActionModify {
			audit.PreviousContent = &previous
		}
		if err := s.suggestions.AddAction(ctx, audit); err != nil {
			return fmt.Errorf("record %s action: %w", action, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("suggestion_id", sg.ID).
		Str("session_id", sg.SessionID).
		Str("action", action).
		Str("status", string(sg.Status)).
		Msg("suggestion reviewed")
	return sg, nil
}
