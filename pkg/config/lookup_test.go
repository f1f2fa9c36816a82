package config

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slackBase = "/services/connectors/slack/config"

func TestLookupScoped_PrefersOrgPath(t *testing.T) {
	l := NewStaticLookup()
	l.Set(slackBase, map[string]any{"botToken": "global"})
	l.Set(slackBase+"/org1", map[string]any{"botToken": "org"})

	v, err := LookupScoped(context.Background(), l, slackBase, "org1")
	require.NoError(t, err)
	assert.Equal(t, "org", v["botToken"])
}

func TestLookupScoped_FallsBackToGlobal(t *testing.T) {
	l := NewStaticLookup()
	l.Set(slackBase, map[string]any{"botToken": "global"})

	v, err := LookupScoped(context.Background(), l, slackBase+"/", "org2")
	require.NoError(t, err)
	assert.Equal(t, "global", v["botToken"])
}

func TestLookupScoped_Missing(t *testing.T) {
	v, err := LookupScoped(context.Background(), NewStaticLookup(), slackBase, "org1")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStaticLookup_ReturnsCopies(t *testing.T) {
	l := NewStaticLookup()
	l.Set("/a", map[string]any{"k": "v"})

	v, _ := l.Get(context.Background(), "/a")
	v["k"] = "changed"

	again, _ := l.Get(context.Background(), "/a")
	assert.Equal(t, "v", again["k"])
}

func TestPGLookup_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta(`SELECT value FROM connector_configs WHERE path = $1`)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(slackBase + "/org1").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"botToken":"xoxb-1","public":true}`)))

		v, err := NewPGLookup(db).Get(context.Background(), slackBase+"/org1")
		require.NoError(t, err)
		assert.Equal(t, "xoxb-1", v["botToken"])
		assert.Equal(t, true, v["public"])
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(slackBase).
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		v, err := NewPGLookup(db).Get(context.Background(), slackBase)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLookup_Put(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO connector_configs`)).
		WithArgs(slackBase, []byte(`{"botToken":"xoxb-2"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPGLookup(db).Put(context.Background(), slackBase, map[string]any{"botToken": "xoxb-2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
