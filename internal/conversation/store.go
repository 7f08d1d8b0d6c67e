package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrContention is returned when an optimistic write loses every retry
// against concurrent writers for the same user.
var ErrContention = errors.New("conversation: write contention not resolved")

// maxWriteAttempts bounds the optimistic retry loop. Each attempt re-reads
// the document, so a lost race converges on the next pass.
const maxWriteAttempts = 5

// Store persists one conversation document per user in Postgres. All
// mutation goes through UpsertMessage and UpdateProfile; both are atomic
// with respect to concurrent writers for the same user via a version column.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a conversation store backed by the given pool.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "conversation")),
		now:    time.Now,
	}
}

// Get loads the document for userID, creating an empty one on first contact.
func (s *Store) Get(ctx context.Context, userID string) (Document, error) {
	doc, _, err := s.load(ctx, userID)
	return doc, err
}

// UpsertMessage merges msg into the user's transcript and returns the
// resulting document. Re-delivery of the same message id replaces the entry
// in place; it never duplicates.
func (s *Store) UpsertMessage(ctx context.Context, userID string, msg Message) (Document, error) {
	return s.mutate(ctx, userID, func(doc *Document, now time.Time) {
		applyUpsert(doc, msg, now)
	})
}

// UpdateProfile merges patch into the user's profile. The transcript is
// carried through untouched.
func (s *Store) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (Document, error) {
	if patch.IsZero() {
		return s.Get(ctx, userID)
	}
	return s.mutate(ctx, userID, func(doc *Document, now time.Time) {
		applyPatch(doc, patch, now)
	})
}

// mutate runs an optimistic read-modify-write loop: load the row and its
// version, apply fn to the decoded document, and write back guarded by the
// version. A concurrent writer bumps the version and forces a re-read.
func (s *Store) mutate(ctx context.Context, userID string, fn func(doc *Document, now time.Time)) (Document, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		doc, version, err := s.load(ctx, userID)
		if err != nil {
			return Document{}, err
		}

		now := s.now()
		fn(&doc, now)

		profileJSON, err := json.Marshal(doc.Profile)
		if err != nil {
			return Document{}, fmt.Errorf("encode profile: %w", err)
		}
		messagesJSON, err := json.Marshal(doc.Messages)
		if err != nil {
			return Document{}, fmt.Errorf("encode messages: %w", err)
		}

		tag, err := s.pool.Exec(ctx,
			`UPDATE conversations
			 SET profile = $1, messages = $2, version = version + 1, updated_at = $3
			 WHERE user_id = $4 AND version = $5`,
			profileJSON, messagesJSON, now.UTC(), userID, version,
		)
		if err != nil {
			return Document{}, fmt.Errorf("write conversation: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return doc, nil
		}

		s.logger.Debug("conversation write lost race, retrying",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt+1))
	}
	return Document{}, fmt.Errorf("%w: user %s", ErrContention, userID)
}

// load reads the document row, lazily creating it on first contact.
func (s *Store) load(ctx context.Context, userID string) (Document, int64, error) {
	for {
		var (
			profileJSON  []byte
			messagesJSON []byte
			version      int64
		)
		err := s.pool.QueryRow(ctx,
			`SELECT profile, messages, version FROM conversations WHERE user_id = $1`,
			userID,
		).Scan(&profileJSON, &messagesJSON, &version)
		if err == nil {
			doc, decodeErr := decodeDocument(userID, profileJSON, messagesJSON)
			if decodeErr != nil {
				return Document{}, 0, decodeErr
			}
			return doc, version, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Document{}, 0, fmt.Errorf("read conversation: %w", err)
		}

		if err := s.create(ctx, userID); err != nil {
			return Document{}, 0, err
		}
		// Re-read: a concurrent first-contact writer may have won the insert.
	}
}

func (s *Store) create(ctx context.Context, userID string) error {
	doc := NewDocument(userID, s.now())
	profileJSON, err := json.Marshal(doc.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations (user_id, profile, messages, version)
		 VALUES ($1, $2, '[]'::jsonb, 1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, profileJSON,
	)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func decodeDocument(userID string, profileJSON, messagesJSON []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(profileJSON, &doc.Profile); err != nil {
		return Document{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := json.Unmarshal(messagesJSON, &doc.Messages); err != nil {
		return Document{}, fmt.Errorf("decode messages: %w", err)
	}
	if doc.Profile.UserID == "" {
		doc.Profile.UserID = userID
	}
	if doc.Profile.OnboardingStep == "" {
		doc.Profile.OnboardingStep = StepGender
	}
	return doc, nil
}
