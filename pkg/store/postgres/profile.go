package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

// ProfileStore reads the static part of a user's profile.
type ProfileStore struct {
	store *Store
}

// LoadIdentity returns the user row plus family and medications. A missing
// user is a typed not-found error so callers can degrade instead of failing.
func (p *ProfileStore) LoadIdentity(ctx context.Context, userID string) (types.Identity, error) {
	var id types.Identity
	row := p.store.pool.QueryRow(ctx,
		`SELECT id, name, age, gender, language, cognitive_mode FROM users WHERE id = $1`, userID)
	if err := row.Scan(&id.UserID, &id.Name, &id.Age, &id.Gender, &id.Language, &id.CognitiveMode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Identity{}, core.NewNotFoundError(fmt.Sprintf("user %q not found", userID))
		}
		return types.Identity{}, core.NewCollaboratorError("profile-store", err)
	}

	family, err := p.loadFamily(ctx, userID)
	if err != nil {
		return types.Identity{}, err
	}
	id.Family = family

	meds, err := p.loadMedications(ctx, userID)
	if err != nil {
		return types.Identity{}, err
	}
	id.Medications = meds

	return id, nil
}

func (p *ProfileStore) loadFamily(ctx context.Context, userID string) ([]types.FamilyMember, error) {
	rows, err := p.store.pool.Query(ctx,
		`SELECT name, relation FROM family_members WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, core.NewCollaboratorError("profile-store", err)
	}
	defer rows.Close()

	var family []types.FamilyMember
	for rows.Next() {
		var m types.FamilyMember
		if err := rows.Scan(&m.Name, &m.Relation); err != nil {
			return nil, core.NewCollaboratorError("profile-store", err)
		}
		family = append(family, m)
	}
	return family, rows.Err()
}

func (p *ProfileStore) loadMedications(ctx context.Context, userID string) ([]types.Medication, error) {
	rows, err := p.store.pool.Query(ctx,
		`SELECT name, dosage, schedule FROM medications WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, core.NewCollaboratorError("profile-store", err)
	}
	defer rows.Close()

	var meds []types.Medication
	for rows.Next() {
		var m types.Medication
		if err := rows.Scan(&m.Name, &m.Dosage, &m.Schedule); err != nil {
			return nil, core.NewCollaboratorError("profile-store", err)
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

func (p *ProfileStore) LoadSafetyRules(ctx context.Context, userID string) ([]types.SafetyRule, error) {
	rows, err := p.store.pool.Query(ctx,
		`SELECT severity, rule_text FROM safety_rules WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, core.NewCollaboratorError("profile-store", err)
	}
	defer rows.Close()

	var rules []types.SafetyRule
	for rows.Next() {
		var r types.SafetyRule
		if err := rows.Scan(&r.Severity, &r.Text); err != nil {
			return nil, core.NewCollaboratorError("profile-store", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// LoadMusicPreferences returns nil when the user has no stored preferences.
func (p *ProfileStore) LoadMusicPreferences(ctx context.Context, userID string) (*types.MusicPreferences, error) {
	var prefs types.MusicPreferences
	row := p.store.pool.QueryRow(ctx,
		`SELECT genres, artists, era FROM music_preferences WHERE user_id = $1`, userID)
	if err := row.Scan(&prefs.Genres, &prefs.Artists, &prefs.Era); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, core.NewCollaboratorError("profile-store", err)
	}
	return &prefs, nil
}
