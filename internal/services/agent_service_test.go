package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/utils"
)

func TestAgentServiceGetCaches(t *testing.T) {
	id := uuid.NewString()
	repo := newFakeAgentRepo(models.Agent{ID: id, Name: "coach", Instructions: "be brief"})
	svc := NewAgentService(repo, newMemCache(), 0)

	a, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "coach", a.Name)

	_, err = svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loads)
}

func TestAgentServiceGetNotFound(t *testing.T) {
	svc := NewAgentService(newFakeAgentRepo(), newMemCache(), 0)

	_, err := svc.Get(context.Background(), uuid.NewString())
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = svc.Get(context.Background(), "not-a-uuid")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = svc.Get(context.Background(), "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestAgentServiceCreateValidates(t *testing.T) {
	svc := NewAgentService(newFakeAgentRepo(), nil, 0)

	_, err := svc.Create(context.Background(), "u1", AgentInput{Instructions: "x"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Create(context.Background(), "u1", AgentInput{Name: "n", Instructions: "x", Metadata: json.RawMessage(`{bad`)})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	a, err := svc.Create(context.Background(), "u1", AgentInput{
		Name:         " Sales ",
		Instructions: "sell",
		Tags:         []string{"sales"},
		Metadata:     json.RawMessage(`{"tone":"warm"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sales", a.Name)
	assert.Equal(t, "u1", a.CreatedBy)
	assert.NotEmpty(t, a.ID)
}

func TestAgentServiceUpdateInvalidatesCache(t *testing.T) {
	id := uuid.NewString()
	repo := newFakeAgentRepo(models.Agent{ID: id, Name: "old", Instructions: "old"})
	svc := NewAgentService(repo, newMemCache(), 0)
	ctx := context.Background()

	_, err := svc.Get(ctx, id)
	require.NoError(t, err)

	_, err = svc.Update(ctx, id, AgentInput{Name: "new", Instructions: "new"})
	require.NoError(t, err)

	a, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new", a.Name)
}

func TestAgentServiceList(t *testing.T) {
	repo := newFakeAgentRepo(
		models.Agent{ID: uuid.NewString(), Name: "b", Tags: []string{"sales"}},
		models.Agent{ID: uuid.NewString(), Name: "a"},
	)
	svc := NewAgentService(repo, nil, 0)

	all, err := svc.List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sales, err := svc.List(context.Background(), " sales ", 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "b", sales[0].Name)
}
