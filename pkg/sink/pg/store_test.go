package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

func sampleBatch() []types.RecordWithPermissions {
	channel := &types.Record{
		ID: "3b241101-e2bb-4255-8caf-4136c566a962", OrgID: "org1", Name: "general",
		Kind: types.KindContainer, GroupType: types.GroupSlackChannel, Origin: types.OriginConnector,
		ConnectorName: "SLACK", Version: 1, ExternalID: "C1", MimeType: types.MimeFolder,
		IndexingStatus: types.IndexingCompleted,
	}
	msg := &types.Record{
		ID: "5c0bc5e6-3d3f-4d2b-9bb6-0a8b0c6f0f11", OrgID: "org1", Name: "Message from U1: hi",
		Kind: types.KindMessage, Origin: types.OriginConnector, ConnectorName: "SLACK",
		ExternalID: "C1:1700000000.000100", ExternalGroupID: "C1", MimeType: types.MimePlainText,
		IndexingStatus: types.IndexingNotStarted, Content: "hi",
	}
	perms := []types.Permission{types.OrgRead("org1")}
	return []types.RecordWithPermissions{
		{Record: channel, Permissions: perms},
		{Record: msg, Permissions: perms},
	}
}

func TestOnNewRecords_SingleTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO record_permissions").
		WithArgs("3b241101-e2bb-4255-8caf-4136c566a962", "READ", "ORG", "org1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO record_permissions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewStore(db).OnNewRecords(context.Background(), sampleBatch()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnNewRecords_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO record_permissions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO records").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err = NewStore(db).OnNewRecords(context.Background(), sampleBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnNewRecords_EmptyBatchIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewStore(db).OnNewRecords(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnNewRecords_InvalidBatchNeverOpensTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	batch := sampleBatch()
	batch[1].Record.ExternalID = ""

	err = NewStore(db).OnNewRecords(context.Background(), batch)
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "external_id", ve.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var recordColumns = []string{
	"id", "org_id", "name", "kind", "group_type", "origin", "connector_name", "version",
	"created_at", "updated_at", "source_created_at", "source_updated_at",
	"external_id", "external_group_id", "mime_type", "web_url",
	"indexing_status", "content", "virtual_record_id",
}

func TestGetRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery("FROM records WHERE id").
			WithArgs("r1", "org1").
			WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
				"r1", "org1", "Message from U1: hi", "MESSAGE", "", "CONNECTOR", "SLACK", 0,
				int64(1), int64(1), int64(1700000000000), int64(0),
				"C1:1700000000.000100", "C1", "text/plain", "https://slack.com/archives/C1/p1700000000000100",
				"NOT_STARTED", "hi", "r1",
			))

		r, err := store.GetRecord(context.Background(), "org1", "r1")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, types.KindMessage, r.Kind)
		assert.Equal(t, types.IndexingNotStarted, r.IndexingStatus)
		assert.Equal(t, "C1", r.ExternalGroupID)
		assert.Equal(t, int64(1700000000000), r.SourceCreatedAt)
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery("FROM records WHERE id").
			WithArgs("nope", "org1").
			WillReturnRows(sqlmock.NewRows(recordColumns))

		r, err := store.GetRecord(context.Background(), "org1", "nope")
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM record_permissions").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"perm_type", "entity_type", "external_id"}).
			AddRow("READ", "ORG", "org1"))

	perms, err := NewStore(db).GetPermissions(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []types.Permission{types.OrgRead("org1")}, perms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewStore(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
