package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medication-reminder/internal/model"
)

// PreferenceRepository is a flat key/value store scoped to one namespace.
type PreferenceRepository struct {
	db        *gorm.DB
	namespace string
}

func NewPreferenceRepository(db *gorm.DB, namespace string) *PreferenceRepository {
	return &PreferenceRepository{db: db, namespace: namespace}
}

func (r *PreferenceRepository) Namespace() string {
	return r.namespace
}

// Get returns the stored value and whether the key exists.
func (r *PreferenceRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var pref model.Preference
	err := r.db.WithContext(ctx).Where("namespace = ? AND key = ?", r.namespace, key).First(&pref).Error
	switch {
	case err == nil:
		return pref.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
}

// GetAll returns every key/value pair in the namespace.
func (r *PreferenceRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var prefs []model.Preference
	if err := r.db.WithContext(ctx).Where("namespace = ?", r.namespace).Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	result := make(map[string]string, len(prefs))
	for _, p := range prefs {
		result[p.Key] = p.Value
	}
	return result, nil
}

// PutAll upserts every pair in a single transaction.
func (r *PreferenceRepository) PutAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	prefs := make([]model.Preference, 0, len(keys))
	for _, k := range keys {
		prefs = append(prefs, model.Preference{Namespace: r.namespace, Key: k, Value: values[k]})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&prefs).Error
	})
	if err != nil {
		return fmt.Errorf("put preferences: %w", err)
	}
	return nil
}

// Clear removes every key in the namespace. Other namespaces are untouched.
func (r *PreferenceRepository) Clear(ctx context.Context) error {
	err := r.db.WithContext(ctx).Where("namespace = ?", r.namespace).Delete(&model.Preference{}).Error
	if err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}
