package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/chidihq/chidi-backend/internal/common"
	"github.com/chidihq/chidi-backend/internal/domain"
)

func TestBusinessContextRepository_StoreContext(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	bc := domain.BusinessContext{
		BusinessID: "biz-001",
		Profile: domain.BusinessProfile{
			Name: common.Ptr("Acme Coffee"),
			Type: common.Ptr("retail"),
		},
		Keywords:        []string{"coffee", "retail"},
		Insights:        map[string]string{"market_positioning": "premium"},
		Recommendations: []string{"Open a second location"},
		Embedding:       []float64{0.1, 0.2, 0.3},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	insertSQL := "INSERT INTO business_contexts (business_id,profile,keywords,insights,recommendations,embedding,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (business_id) DO UPDATE SET profile = EXCLUDED.profile, keywords = EXCLUDED.keywords, insights = EXCLUDED.insights, recommendations = EXCLUDED.recommendations, embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at"

	tests := map[string]struct {
		bc     domain.BusinessContext
		expect func(sqlmock.Sqlmock)
		err    bool
	}{
		"success": {
			bc: bc,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(insertSQL).
					WithArgs(
						bc.BusinessID,
						sqlmock.AnyArg(), // profile json
						sqlmock.AnyArg(), // keywords json
						sqlmock.AnyArg(), // insights json
						sqlmock.AnyArg(), // recommendations json
						sqlmock.AnyArg(), // embedding vector
						bc.CreatedAt,
						bc.UpdatedAt,
					).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			err: false,
		},
		"missing-business-id": {
			bc:     domain.BusinessContext{},
			expect: func(m sqlmock.Sqlmock) {},
			err:    true,
		},
		"db-error": {
			bc: bc,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(insertSQL).
					WithArgs(
						bc.BusinessID,
						sqlmock.AnyArg(),
						sqlmock.AnyArg(),
						sqlmock.AnyArg(),
						sqlmock.AnyArg(),
						sqlmock.AnyArg(),
						bc.CreatedAt,
						bc.UpdatedAt,
					).
					WillReturnError(errors.New("db error"))
			},
			err: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			assert.NoError(t, err)
			defer db.Close() // nolint:errcheck

			tt.expect(mock)

			repo := NewBusinessContextRepository(db)
			gotErr := repo.StoreContext(context.Background(), tt.bc)
			if tt.err {
				assert.Error(t, gotErr)
			} else {
				assert.NoError(t, gotErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBusinessContextRepository_StoreContext_NoEmbedding(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	bc := domain.BusinessContext{
		BusinessID: "biz-001",
		Profile: domain.BusinessProfile{
			Name: common.Ptr("Acme Coffee"),
		},
		Keywords:  []string{"coffee"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	assert.NoError(t, err)
	defer db.Close() // nolint:errcheck

	mock.ExpectExec("INSERT INTO business_contexts (business_id,profile,keywords,insights,recommendations,embedding,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (business_id) DO UPDATE SET profile = EXCLUDED.profile, keywords = EXCLUDED.keywords, insights = EXCLUDED.insights, recommendations = EXCLUDED.recommendations, embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at").
		WithArgs(
			bc.BusinessID,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			nil, // embedding column is NULL when no vector was generated
			bc.CreatedAt,
			bc.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewBusinessContextRepository(db)
	assert.NoError(t, repo.StoreContext(context.Background(), bc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessContextRepository_GetContext(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	selectSQL := "SELECT business_id, profile, keywords, insights, recommendations, embedding, created_at, updated_at FROM business_contexts WHERE business_id = $1"

	tests := map[string]struct {
		expect    func(sqlmock.Sqlmock)
		wantFound bool
		wantErr   bool
	}{
		"found": {
			expect: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(businessContextFields).
					AddRow(
						"biz-001",
						[]byte(`{"name":"Acme Coffee","type":"retail"}`),
						[]byte(`["coffee","retail"]`),
						[]byte(`{"market_positioning":"premium"}`),
						[]byte(`["Open a second location"]`),
						"[0.1,0.2,0.3]",
						now,
						now,
					)
				m.ExpectQuery(selectSQL).WithArgs("biz-001").WillReturnRows(rows)
			},
			wantFound: true,
		},
		"not-found": {
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(selectSQL).WithArgs("biz-001").WillReturnRows(sqlmock.NewRows(businessContextFields))
			},
			wantFound: false,
		},
		"db-error": {
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(selectSQL).WithArgs("biz-001").WillReturnError(errors.New("db error"))
			},
			wantErr: true,
		},
		"bad-profile-json": {
			expect: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(businessContextFields).
					AddRow(
						"biz-001",
						[]byte(`{not json`),
						[]byte(`[]`),
						[]byte(`{}`),
						[]byte(`[]`),
						"[0.1]",
						now,
						now,
					)
				m.ExpectQuery(selectSQL).WithArgs("biz-001").WillReturnRows(rows)
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			assert.NoError(t, err)
			defer db.Close() // nolint:errcheck

			tt.expect(mock)

			repo := NewBusinessContextRepository(db)
			got, found, gotErr := repo.GetContext(context.Background(), "biz-001")
			if tt.wantErr {
				assert.Error(t, gotErr)
				return
			}

			assert.NoError(t, gotErr)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, "biz-001", got.BusinessID)
				assert.Equal(t, "Acme Coffee", *got.Profile.Name)
				assert.Equal(t, []string{"coffee", "retail"}, got.Keywords)
				assert.Equal(t, map[string]string{"market_positioning": "premium"}, got.Insights)
				assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, got.Embedding, 1e-6)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBusinessContextRepository_GetContext_NullEmbedding(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	assert.NoError(t, err)
	defer db.Close() // nolint:errcheck

	rows := sqlmock.NewRows(businessContextFields).
		AddRow(
			"biz-001",
			[]byte(`{"name":"Acme Coffee"}`),
			[]byte(`["coffee"]`),
			[]byte(`{}`),
			[]byte(`[]`),
			nil,
			now,
			now,
		)
	mock.ExpectQuery("SELECT business_id, profile, keywords, insights, recommendations, embedding, created_at, updated_at FROM business_contexts WHERE business_id = $1").
		WithArgs("biz-001").
		WillReturnRows(rows)

	repo := NewBusinessContextRepository(db)
	got, found, gotErr := repo.GetContext(context.Background(), "biz-001")
	assert.NoError(t, gotErr)
	assert.True(t, found)
	assert.Equal(t, "Acme Coffee", *got.Profile.Name)
	assert.Nil(t, got.Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessContextRepository_ListContexts(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	selectSQL := "SELECT business_id, profile, keywords, insights, recommendations, embedding, created_at, updated_at FROM business_contexts ORDER BY created_at ASC"

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	assert.NoError(t, err)
	defer db.Close() // nolint:errcheck

	rows := sqlmock.NewRows(businessContextFields).
		AddRow("biz-001", []byte(`{}`), []byte(`[]`), []byte(`{}`), []byte(`[]`), "[0.1]", now, now).
		AddRow("biz-002", []byte(`{}`), []byte(`[]`), []byte(`{}`), []byte(`[]`), "[0.2]", now, now)
	mock.ExpectQuery(selectSQL).WillReturnRows(rows)

	repo := NewBusinessContextRepository(db)
	got, err := repo.ListContexts(context.Background())
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "biz-001", got[0].BusinessID)
	assert.Equal(t, "biz-002", got[1].BusinessID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessContextRepository_DeleteContext(t *testing.T) {
	tests := map[string]struct {
		expect func(sqlmock.Sqlmock)
		err    bool
	}{
		"success": {
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("DELETE FROM business_contexts WHERE business_id = $1").
					WithArgs("biz-001").
					WillReturnResult(driver.RowsAffected(1))
			},
			err: false,
		},
		"db-error": {
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("DELETE FROM business_contexts WHERE business_id = $1").
					WithArgs("biz-001").
					WillReturnError(errors.New("db error"))
			},
			err: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			assert.NoError(t, err)
			defer db.Close() // nolint:errcheck

			tt.expect(mock)

			repo := NewBusinessContextRepository(db)
			gotErr := repo.DeleteContext(context.Background(), "biz-001")
			if tt.err {
				assert.Error(t, gotErr)
			} else {
				assert.NoError(t, gotErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBusinessContextRepository_SearchSimilarContexts(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	selectSQL := "SELECT business_id, profile, keywords, insights, recommendations, embedding, created_at, updated_at FROM business_contexts ORDER BY embedding <=> $1 LIMIT 3"

	tests := map[string]struct {
		limit   int
		expect  func(sqlmock.Sqlmock)
		wantLen int
		wantErr bool
	}{
		"success": {
			limit: 3,
			expect: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(businessContextFields).
					AddRow("biz-001", []byte(`{}`), []byte(`[]`), []byte(`{}`), []byte(`[]`), "[0.1,0.2]", now, now)
				m.ExpectQuery(selectSQL).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
			},
			wantLen: 1,
		},
		"invalid-limit": {
			limit:   0,
			expect:  func(m sqlmock.Sqlmock) {},
			wantErr: true,
		},
		"db-error": {
			limit: 3,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(selectSQL).WithArgs(sqlmock.AnyArg()).WillReturnError(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			assert.NoError(t, err)
			defer db.Close() // nolint:errcheck

			tt.expect(mock)

			repo := NewBusinessContextRepository(db)
			got, gotErr := repo.SearchSimilarContexts(context.Background(), []float64{0.1, 0.2}, tt.limit)
			if tt.wantErr {
				assert.Error(t, gotErr)
				return
			}

			assert.NoError(t, gotErr)
			assert.Len(t, got, tt.wantLen)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
