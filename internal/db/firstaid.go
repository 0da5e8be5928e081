package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rescuelog/backend/internal/model"
)

// EnsureFirstAidSchema - first_aid_guides 테이블 생성
// condition은 대소문자 구분 없이 유일해야 하므로 lower(condition)에 유니크 인덱스
func (db *Postgres) EnsureFirstAidSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS first_aid_guides (
			condition TEXT PRIMARY KEY,
			steps JSONB NOT NULL DEFAULT '[]',
			image_url TEXT,
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS first_aid_guides_condition_lower_idx ON first_aid_guides(lower(condition))`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// SearchFirstAidGuides returns guides whose condition contains search (case-insensitive),
// or every guide when search is empty.
func (db *Postgres) SearchFirstAidGuides(ctx context.Context, search string) ([]model.FirstAidGuide, error) {
	query := `
		SELECT condition, steps, image_url, source, created_at, updated_at
		FROM first_aid_guides
		WHERE $1 = '' OR condition ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY condition`

	rows, err := db.Pool.Query(ctx, query, escapeLike(search))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.FirstAidGuide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if list == nil {
		list = []model.FirstAidGuide{}
	}
	return list, nil
}

func (db *Postgres) GetFirstAidGuide(ctx context.Context, condition string) (*model.FirstAidGuide, error) {
	query := `
		SELECT condition, steps, image_url, source, created_at, updated_at
		FROM first_aid_guides
		WHERE lower(condition) = lower($1)
	`
	return scanGuide(db.Pool.QueryRow(ctx, query, condition))
}

// 유니크 인덱스가 lower(condition)이므로 충돌 대상도 같은 식이어야 "burns"가 "Burns"를 갱신함
const upsertFirstAidGuideSQL = `
		INSERT INTO first_aid_guides (condition, steps, image_url, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT ((lower(condition))) DO UPDATE
		SET steps = EXCLUDED.steps,
			image_url = EXCLUDED.image_url,
			source = EXCLUDED.source,
			updated_at = NOW()
	`

// UpsertFirstAidGuide - 운영자 시드/테스트용
func (db *Postgres) UpsertFirstAidGuide(ctx context.Context, g model.FirstAidGuide) error {
	steps := g.Steps
	if steps == nil {
		steps = []string{}
	}
	_, err := db.Pool.Exec(ctx, upsertFirstAidGuideSQL, strings.TrimSpace(g.Condition), steps, g.ImageURL, g.Source)
	return err
}

func scanGuide(row pgx.Row) (*model.FirstAidGuide, error) {
	var g model.FirstAidGuide
	if err := row.Scan(&g.Condition, &g.Steps, &g.ImageURL, &g.Source, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if g.Steps == nil {
		g.Steps = []string{}
	}
	return &g, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
