package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestNewMediaRepo_Index(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("created", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo, err := NewMediaRepo(context.Background(), mt.Coll)
		require.NoError(mt, err)
		assert.NotNil(mt, repo)
	})

	mt.Run("index error is returned", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized on images to execute command",
		}))
		repo, err := NewMediaRepo(context.Background(), mt.Coll)
		require.Error(mt, err)
		assert.Nil(mt, repo)
		var ce mongo.CommandError
		require.ErrorAs(mt, err, &ce)
		assert.Equal(mt, int32(13), ce.Code)
	})
}
