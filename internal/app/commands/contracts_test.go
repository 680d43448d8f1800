package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/app/commands"
)

type renameCommand struct{ Name string }

func (renameCommand) Key() string { return "test.rename" }

func TestDispatch_TypedResult(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, string](bus, commands.HandlerFunc[renameCommand, string](
		func(_ context.Context, cmd renameCommand) (string, error) { return "renamed " + cmd.Name, nil },
	))

	got, err := commands.Dispatch[renameCommand, string](context.Background(), bus, renameCommand{Name: "golf"})

	require.NoError(t, err)
	assert.Equal(t, "renamed golf", got)
	assert.Equal(t, []string{"test.rename"}, bus.Keys())
}

func TestDispatch_ResultTypeMismatchNamesCommand(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, int](bus, commands.HandlerFunc[renameCommand, int](
		func(context.Context, renameCommand) (int, error) { return 7, nil },
	))

	_, err := commands.Dispatch[renameCommand, string](context.Background(), bus, renameCommand{})

	require.ErrorIs(t, err, commands.ErrResultType)
	assert.Contains(t, err.Error(), "test.rename returned int")
}

func TestDispatch_UnknownAndNilBus(t *testing.T) {
	_, err := commands.Dispatch[renameCommand, string](context.Background(), commands.NewInMemoryBus(), renameCommand{})
	assert.ErrorIs(t, err, commands.ErrHandlerNotFound)

	_, err = commands.Dispatch[renameCommand, string](context.Background(), nil, renameCommand{})
	assert.ErrorIs(t, err, commands.ErrNilBus)
}
