package setting

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Setting{}), "failed to migrate test database")

	return db
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, db.Create(&models.Setting{Name: "site_name", Value: []byte("My Site")}).Error)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		settingName   string
		expectedError error
		expectedValue []byte
	}{
		{
			name:          "nil database",
			settingName:   "test",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty name",
			dbParam:       db,
			expectedError: ErrSettingNameEmpty,
		},
		{
			name:          "setting not found",
			dbParam:       db,
			settingName:   "nonexistent",
			expectedError: ErrSettingNotFound,
		},
		{
			name:          "successful get",
			dbParam:       db,
			settingName:   "site_name",
			expectedValue: []byte("My Site"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setting, err := Get(ctx, tc.dbParam, tc.settingName)

			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, setting)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.settingName, setting.Name)
			assert.Equal(t, tc.expectedValue, setting.Value)
		})
	}
}

func TestSetUpserts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.ErrorIs(t, Set(ctx, nil, "a", nil), ErrDBNil)
	require.ErrorIs(t, Set(ctx, db, "", nil), ErrSettingNameEmpty)

	require.NoError(t, Set(ctx, db, "google_auth", []byte(`{"client_id":"one"}`)))
	require.NoError(t, Set(ctx, db, "google_auth", []byte(`{"client_id":"two"}`)))

	var count int64
	require.NoError(t, db.Model(&models.Setting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	s, err := Get(ctx, db, "google_auth")
	require.NoError(t, err)
	assert.JSONEq(t, `{"client_id":"two"}`, string(s.Value))
}

func TestDeleteByName(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, Set(ctx, db, "google_auth_endpoints", []byte("{}")))

	require.NoError(t, DeleteByName(ctx, db, "google_auth_endpoints"))
	require.ErrorIs(t, DeleteByName(ctx, db, "google_auth_endpoints"), ErrSettingNotFound)
	require.ErrorIs(t, DeleteByName(ctx, db, ""), ErrSettingNameEmpty)
	require.ErrorIs(t, DeleteByName(ctx, nil, "x"), ErrDBNil)
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	type payload struct {
		ClientID string   `json:"client_id"`
		Roles    []string `json:"roles"`
	}

	in := payload{ClientID: "id", Roles: []string{"editor"}}
	require.NoError(t, SaveJSON(ctx, db, "p", in))

	var out payload
	require.NoError(t, LoadJSON(ctx, db, "p", &out))
	assert.Equal(t, in, out)

	require.ErrorIs(t, LoadJSON(ctx, db, "missing", &out), ErrSettingNotFound)

	require.NoError(t, Set(ctx, db, "broken", []byte("{")))
	require.Error(t, LoadJSON(ctx, db, "broken", &out))
}
