package seed

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/speakwell-backend/internal/domain/skills"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
)

//go:embed skills.yaml
var defaultCatalog []byte

// skillNamespace scopes the name-derived catalog ids.
var skillNamespace = uuid.MustParse("6f1c9c52-7a0e-4d0b-9d64-5a3f3c1f2b10")

type catalogFile struct {
	Skills []catalogEntry `yaml:"skills"`
}

type catalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Difficulty  string `yaml:"difficulty"`
	Icon        string `yaml:"icon"`
	Inactive    bool   `yaml:"inactive"`
}

// SkillID returns the stable id for a catalog skill name.
func SkillID(name string) uuid.UUID {
	return uuid.NewSHA1(skillNamespace, []byte(strings.ToLower(strings.TrimSpace(name))))
}

// DefaultSkills parses the embedded catalog.
func DefaultSkills() ([]*skills.Skill, error) {
	return ParseSkills(defaultCatalog)
}

func ParseSkills(raw []byte) ([]*skills.Skill, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse skill catalog: %w", err)
	}
	seen := map[string]bool{}
	out := make([]*skills.Skill, 0, len(f.Skills))
	for i, e := range f.Skills {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("skill catalog entry %d: name required", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("skill catalog entry %d: duplicate name %q", i, name)
		}
		seen[key] = true
		diff := skills.Difficulty(strings.TrimSpace(e.Difficulty))
		if !diff.Valid() {
			return nil, fmt.Errorf("skill %q: invalid difficulty %q", name, e.Difficulty)
		}
		out = append(out, &skills.Skill{
			ID:          SkillID(name),
			Name:        name,
			Description: strings.TrimSpace(e.Description),
			Category:    strings.TrimSpace(e.Category),
			Difficulty:  diff,
			Icon:        strings.TrimSpace(e.Icon),
			IsActive:    !e.Inactive,
		})
	}
	return out, nil
}

// UpsertSkills writes the catalog, updating descriptive fields of existing
// rows by name. Returns the number of rows written.
func UpsertSkills(dbc dbctx.Context, db *gorm.DB, catalog []*skills.Skill) (int, error) {
	if len(catalog) == 0 {
		return 0, nil
	}
	res := dbc.Conn(db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "category", "difficulty", "icon", "is_active"}),
	}).Create(&catalog)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert skills: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
