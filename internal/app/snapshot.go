package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hylla/manas/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "manas.snapshot.v1"

// Snapshot is a portable export of catalog entries and user profiles.
type Snapshot struct {
	Version    string               `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	Activities []SnapshotActivity   `json:"activities"`
	Profiles   []domain.UserContext `json:"profiles,omitempty"`
}

// SnapshotActivity represents one catalog entry persisted in a snapshot.
type SnapshotActivity struct {
	Type              domain.ActivityType      `json:"type"`
	DisplayName       string                   `json:"display_name"`
	Description       string                   `json:"description,omitempty"`
	Category          domain.ActivityCategory  `json:"category"`
	CulturalRelevance int                      `json:"cultural_relevance"`
	DifficultyLevels  []domain.DifficultyLevel `json:"difficulty_levels"`
	DurationOptions   []int                    `json:"duration_options"`
	Prerequisites     []domain.ActivityType    `json:"prerequisites,omitempty"`
	Contraindications []string                 `json:"contraindications,omitempty"`
	TherapeuticGoals  []string                 `json:"therapeutic_goals,omitempty"`
	TargetedSkills    []string                 `json:"targeted_skills,omitempty"`
}

// ExportSnapshot exports the catalog plus the stored profiles of the listed users.
func (s *Service) ExportSnapshot(ctx context.Context, userIDs []string) (Snapshot, error) {
	entries := s.catalog.List()
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Activities: make([]SnapshotActivity, 0, len(entries)),
		Profiles:   make([]domain.UserContext, 0, len(userIDs)),
	}
	for _, meta := range entries {
		snap.Activities = append(snap.Activities, snapshotActivityFromDomain(meta))
	}
	if len(userIDs) > 0 && s.profiles == nil {
		return Snapshot{}, ErrNoStore
	}
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		user, err := s.profiles.GetUserContext(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Snapshot{}, err
		}
		snap.Profiles = append(snap.Profiles, user)
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot registers the snapshot's activities and stores its profiles.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()
	for _, entry := range snap.Activities {
		if err := s.catalog.Register(entry.toDomain()); err != nil {
			return err
		}
	}
	if len(snap.Profiles) > 0 && s.profiles == nil {
		return ErrNoStore
	}
	for _, user := range snap.Profiles {
		if err := s.profiles.SaveUserContext(ctx, user); err != nil {
			return fmt.Errorf("import profile %q: %w", user.UserID, err)
		}
	}
	s.logger.Info("snapshot imported", "activities", len(snap.Activities), "profiles", len(snap.Profiles))
	return nil
}

// ImportActivities registers a snapshot's activities into one catalog.
func ImportActivities(catalog *Catalog, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	for _, entry := range snap.Activities {
		if err := catalog.Register(entry.toDomain()); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	var errs []error
	seen := map[domain.ActivityType]struct{}{}
	for i, a := range s.Activities {
		meta, err := domain.NewActivityMetadata(a.input())
		if err != nil {
			errs = append(errs, fmt.Errorf("activities[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[meta.Type]; dup {
			errs = append(errs, fmt.Errorf("duplicate activity type: %q", meta.Type))
		}
		seen[meta.Type] = struct{}{}
	}
	users := map[string]struct{}{}
	for i := range s.Profiles {
		if err := s.Profiles[i].Normalize(); err != nil {
			errs = append(errs, fmt.Errorf("profiles[%d]: %w", i, err))
			continue
		}
		id := s.Profiles[i].UserID
		if id == "" {
			errs = append(errs, fmt.Errorf("profiles[%d].user_id is required", i))
			continue
		}
		if _, dup := users[id]; dup {
			errs = append(errs, fmt.Errorf("duplicate profile user id: %q", id))
		}
		users[id] = struct{}{}
	}
	return errors.Join(errs...)
}

func (s *Snapshot) sort() {
	sort.Slice(s.Activities, func(i, j int) bool {
		return s.Activities[i].Type < s.Activities[j].Type
	})
	sort.Slice(s.Profiles, func(i, j int) bool {
		return s.Profiles[i].UserID < s.Profiles[j].UserID
	})
}

func snapshotActivityFromDomain(meta domain.ActivityMetadata) SnapshotActivity {
	meta = meta.Clone()
	return SnapshotActivity{
		Type:              meta.Type,
		DisplayName:       meta.DisplayName,
		Description:       meta.Description,
		Category:          meta.Category,
		CulturalRelevance: meta.CulturalRelevance,
		DifficultyLevels:  meta.DifficultyLevels,
		DurationOptions:   meta.DurationOptions,
		Prerequisites:     meta.Prerequisites,
		Contraindications: meta.Contraindications,
		TherapeuticGoals:  meta.TherapeuticGoals,
		TargetedSkills:    meta.TargetedSkills,
	}
}

func (a SnapshotActivity) input() domain.ActivityMetadataInput {
	return domain.ActivityMetadataInput{
		Type:              a.Type,
		DisplayName:       a.DisplayName,
		Description:       a.Description,
		Category:          a.Category,
		CulturalRelevance: a.CulturalRelevance,
		DifficultyLevels:  a.DifficultyLevels,
		DurationOptions:   a.DurationOptions,
		Prerequisites:     a.Prerequisites,
		Contraindications: a.Contraindications,
		TherapeuticGoals:  a.TherapeuticGoals,
		TargetedSkills:    a.TargetedSkills,
	}
}

func (a SnapshotActivity) toDomain() domain.ActivityMetadata {
	return domain.ActivityMetadata{
		Type:              a.Type,
		DisplayName:       a.DisplayName,
		Description:       a.Description,
		Category:          a.Category,
		CulturalRelevance: a.CulturalRelevance,
		DifficultyLevels:  a.DifficultyLevels,
		DurationOptions:   a.DurationOptions,
		Prerequisites:     a.Prerequisites,
		Contraindications: a.Contraindications,
		TherapeuticGoals:  a.TherapeuticGoals,
		TargetedSkills:    a.TargetedSkills,
	}
}
